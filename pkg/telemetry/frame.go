package telemetry

import (
	"fmt"
	"sync"
)

// Source produces the payload of one transaction. It is invoked only once
// the socket is connected.
type Source interface {
	Frame() (string, error)
}

// SourceFunc is the func form of Source.
type SourceFunc func() (string, error)

// Frame implements Source.
func (f SourceFunc) Frame() (string, error) {
	return f()
}

// NodeIDLen is the length of a node identifier.
const NodeIDLen = 3

// ValidateNodeID checks a node identifier fits in a frame.
func ValidateNodeID(id string) error {
	if len(id) != NodeIDLen {
		return fmt.Errorf("node id %q must be %d characters", id, NodeIDLen)
	}
	for _, c := range []byte(id) {
		if c <= ' ' || c > '~' || c == ',' || c == '=' {
			return fmt.Errorf("node id %q contains invalid character %q", id, c)
		}
	}
	return nil
}

// Reading is one humidity/temperature pair.
type Reading struct {
	RH   float32
	Temp float32
}

// ReadingFrame formats a reading: ID=<id>,RH=<%6.2f>,Temp=<%6.2f>.
func ReadingFrame(nodeID string, r Reading) string {
	return fmt.Sprintf("ID=%s,RH=%6.2f,Temp=%6.2f", nodeID, r.RH, r.Temp)
}

// Sensor is what a ReadingSource samples.
type Sensor interface {
	MeasureRelativeHumidity() (float32, error)
	ReadPreviousTemperature() (float32, error)
}

// ReadingSource samples the sensor and formats a ReadingFrame.
type ReadingSource struct {
	NodeID string
	Sensor Sensor

	lock   sync.Mutex
	latest *Reading
}

// Frame implements Source.
func (s *ReadingSource) Frame() (string, error) {
	r, err := s.Sample()
	if err != nil {
		return "", err
	}
	return ReadingFrame(s.NodeID, r), nil
}

// Sample measures humidity and reads the temperature of the same
// conversion.
func (s *ReadingSource) Sample() (Reading, error) {
	var r Reading
	var err error
	if r.RH, err = s.Sensor.MeasureRelativeHumidity(); err != nil {
		return r, err
	}
	if r.Temp, err = s.Sensor.ReadPreviousTemperature(); err != nil {
		return r, err
	}
	s.lock.Lock()
	s.latest = &r
	s.lock.Unlock()
	return r, nil
}

// Latest returns the last successful reading.
func (s *ReadingSource) Latest() (Reading, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.latest == nil {
		return Reading{}, false
	}
	return *s.latest, true
}

// Probe generates "<tag> #<counter>\r" frames. The counter is shared by
// all tags and pre-incremented, so the first frame is #1.
type Probe struct {
	lock    sync.Mutex
	counter int
}

// Next formats the next probe frame.
func (p *Probe) Next(tag string) string {
	p.lock.Lock()
	p.counter++
	n := p.counter
	p.lock.Unlock()
	return fmt.Sprintf("%s #%d\r", tag, n)
}

// Source returns a Source emitting probe frames with tag.
func (p *Probe) Source(tag string) Source {
	return SourceFunc(func() (string, error) {
		return p.Next(tag), nil
	})
}
