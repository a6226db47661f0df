// Package framework provides the cooperative scheduler driving a node.
//
// All tasks registered on a Loop run on a single goroutine, so tasks never
// race with each other. Other goroutines (e.g. GPIO edge watchers) hand work
// over by posting messages and waking the loop; they must not touch the bus
// or the network themselves.
package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Message defines the abstract message to be
// consumed in a loop iteration.
type Message interface{}

// Task is a unit of work executed by the Loop.
type Task interface {
	RunTask(TaskContext) error
}

// TaskFunc is the func form of Task.
type TaskFunc func(TaskContext) error

// RunTask implements Task.
func (f TaskFunc) RunTask(tc TaskContext) error {
	return f(tc)
}

// TimeSource provides the time for a task.
type TimeSource interface {
	Time() time.Time
}

// TaskContext provides the context of the current loop iteration.
type TaskContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// Messages retrieves all messages collected when
	// this iteration starts.
	Messages() MessageStore

	LoopControl
}

// LoopControl exposes access to the loop. All methods are safe
// to call from any goroutine.
type LoopControl interface {
	// Call schedules one-shot tasks on the next iteration and
	// wakes the loop.
	Call(tasks ...Task)
	// PostMessage enqueues the message.
	PostMessage(Message)
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current iteration.
	TriggerNext()
}

// MessageStore provides read/write access to a list of messages.
type MessageStore interface {
	// ProcessMessages uses a processor to process all messages.
	ProcessMessages(MessageProcessor)
}

// MessageProcessor is used by MessageStore to process messages.
type MessageProcessor interface {
	ProcessMessage(MessageProcessingContext)
}

// ProcessMessageFunc is the func form of MessageProcessor.
type ProcessMessageFunc func(MessageProcessingContext)

// ProcessMessage implements MessageProcessor.
func (f ProcessMessageFunc) ProcessMessage(mc MessageProcessingContext) {
	f(mc)
}

// MessageProcessingContext provides context for current message.
type MessageProcessingContext interface {
	// CurrentMessage gets the current message being processed.
	CurrentMessage() Message
	// MessageTaken indicates the message has been processed and
	// should be removed from store.
	MessageTaken()
	// StopProcessing indicates no need to examine further messages.
	StopProcessing()
}
