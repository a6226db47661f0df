package framework

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the default resolution of the loop.
const DefaultInterval = 100 * time.Millisecond

// Loop runs periodic and one-shot tasks on a single goroutine.
type Loop struct {
	// Interval is the resolution of periodic tasks.
	Interval time.Duration

	tasks   []*scheduledTask
	runners []Runnable

	calls    []Task
	messages messageList
	lock     sync.Mutex

	wakeUpCh chan struct{}
	once     sync.Once
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type scheduledTask struct {
	name   string
	period time.Duration
	task   Task
	next   time.Time
}

type loopIteration struct {
	*Loop
	ctx      context.Context
	time     time.Time
	messages messageList
}

type messageList struct {
	head *messageItem
	tail *messageItem
}

type messageItem struct {
	msg  Message
	next *messageItem
}

func (l *messageList) append(item *messageItem) {
	if l.head == nil {
		l.head = item
	} else {
		l.tail.next = item
	}
	l.tail = item
}

func (l *messageList) splice(src *messageList) {
	l.head, l.tail, src.head, src.tail = src.head, src.tail, nil, nil
}

func (l *messageList) concat(lst *messageList) {
	if lst.head == nil {
		return
	}
	if l.head == nil {
		l.head = lst.head
	} else {
		l.tail.next = lst.head
	}
	l.tail = lst.tail
}

var (
	loopCtxKey = &Loop{}
)

// LoopCtlFrom gets LoopControl from context.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(loopCtxKey).(LoopControl)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

func (l *Loop) init() {
	l.once.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddTask registers tasks executed on every iteration.
// Message consumers are usually registered this way.
func (l *Loop) AddTask(tasks ...Task) *Loop {
	for _, task := range tasks {
		l.Every(0, task)
	}
	return l
}

// Every registers a task executed once per period. The first run
// happens one period after the loop starts; use Call as well to
// also run it immediately.
func (l *Loop) Every(period time.Duration, task Task) *Loop {
	name := strconv.Itoa(len(l.tasks))
	if named, ok := task.(Named); ok {
		name = named.Name()
	}
	l.tasks = append(l.tasks, &scheduledTask{name: name, period: period, task: task})
	if runner, ok := task.(Runnable); ok {
		l.runners = append(l.runners, runner)
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	l.init()

	runner := NewRunnerWith(context.WithValue(ctx, loopCtxKey, LoopControl(l)))
	runner.Go(l.runners...)
	defer runner.Wait()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.start(time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.runIteration(ctx, now)
		case <-l.wakeUpCh:
			l.runIteration(ctx, time.Now())
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail() {
	if err := NewRunner().HandleSignals().Go(l).Wait(); err != nil {
		log.Fatalln(err)
	}
}

// Call implements LoopControl.
func (l *Loop) Call(tasks ...Task) {
	l.lock.Lock()
	l.calls = append(l.calls, tasks...)
	l.lock.Unlock()
	l.TriggerNext()
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.lock.Lock()
	l.messages.append(&messageItem{msg: msg})
	l.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	l.init()
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (l *Loop) start(now time.Time) {
	for _, t := range l.tasks {
		t.next = now.Add(t.period)
	}
}

func (l *Loop) runIteration(ctx context.Context, now time.Time) {
	iter := &loopIteration{Loop: l, time: now}
	l.lock.Lock()
	iter.messages.splice(&l.messages)
	calls := l.calls
	l.calls = nil
	l.lock.Unlock()
	iter.ctx = context.WithValue(ctx, loopCtxKey, LoopControl(l))

	for n, task := range calls {
		name := "call-" + strconv.Itoa(n)
		if named, ok := task.(Named); ok {
			name = named.Name()
		}
		runTask(iter, name, task)
	}
	for _, t := range l.tasks {
		if t.period > 0 {
			if now.Before(t.next) {
				continue
			}
			if t.next = t.next.Add(t.period); !t.next.After(now) {
				// fell behind, don't burst.
				t.next = now.Add(t.period)
			}
		}
		runTask(iter, t.name, t.task)
	}
	if iter.messages.head != nil {
		glog.V(4).Info("unprocessed messages dropped")
	}
}

func runTask(iter *loopIteration, name string, task Task) {
	if err := task.RunTask(iter); err != nil {
		glog.Errorf("task %s error: %v", name, err)
	}
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) Messages() MessageStore {
	return t
}

// MessageStore implementations

type messageContext struct {
	item  *messageItem
	taken bool
	stop  bool
}

func (c *messageContext) CurrentMessage() Message { return c.item.msg }
func (c *messageContext) MessageTaken()           { c.taken = true }
func (c *messageContext) StopProcessing()         { c.stop = true }

func (t *loopIteration) ProcessMessages(proc MessageProcessor) {
	var msgs, remains messageList
	msgs.splice(&t.messages)
	for msgs.head != nil {
		mctx := &messageContext{item: msgs.head}
		if msgs.head = msgs.head.next; msgs.head == nil {
			msgs.tail = nil
		}
		mctx.item.next = nil
		proc.ProcessMessage(mctx)
		if !mctx.taken {
			remains.append(mctx.item)
		}
		if mctx.stop {
			remains.concat(&msgs)
			break
		}
	}
	t.messages = remains
}

// namedTask wraps a Task with a name.
type namedTask struct {
	Task
	name string
}

func (t *namedTask) Name() string {
	return t.name
}

// NamedTask gives a task a name used in logs.
func NamedTask(name string, task Task) Task {
	return &namedTask{Task: task, name: name}
}
