package control

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Settings are the hyperparameters a running loop lets the operator change.
type Settings struct {
	LearningRate   float64
	Momentum       float64
	MagnitudeStart float64
	MagnitudeEnd   float64
	// Iterations is the total iteration target of the run.
	Iterations int
	Verbose    bool
	Stopped    bool
}

// Apply changes s according to cmd. A rejected value leaves s untouched.
func (s *Settings) Apply(cmd Command) error {
	switch cmd.Kind {
	case 0:
	case Stop:
		s.Stopped = true
	case Show:
		s.Verbose = true
	case Hide:
		s.Verbose = false
	case SetIterations:
		s.Iterations = cmd.Count
	case SetLearningRate, SetMomentum, SetMagnitudeStart, SetMagnitudeEnd:
		if cmd.Value < 0 {
			return fmt.Errorf("%w: %v", ErrNegative, cmd.Value)
		}
		switch cmd.Kind {
		case SetLearningRate:
			s.LearningRate = cmd.Value
		case SetMomentum:
			s.Momentum = cmd.Value
		case SetMagnitudeStart:
			s.MagnitudeStart = cmd.Value
		case SetMagnitudeEnd:
			s.MagnitudeEnd = cmd.Value
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrUnknown, cmd.Kind)
	}
	return nil
}

// Drain applies every pending line from p. Bad lines are logged and skipped.
// A nil p is a no-op.
func (s *Settings) Drain(p Poller, log logrus.FieldLogger) {
	if p == nil {
		return
	}
	for {
		line, ok := p.Poll()
		if !ok {
			return
		}
		cmd, err := Parse(line)
		if err == nil {
			err = s.Apply(cmd)
		}
		if err != nil {
			log.WithError(err).WithField("line", line).Warn("ignoring command")
		}
	}
}
