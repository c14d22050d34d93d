// Package control reads operator commands that adjust a training run while
// it is in progress.
package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknown reports an unrecognized command token.
	ErrUnknown = errors.New("unknown command")
	// ErrArgument reports a missing or malformed command argument.
	ErrArgument = errors.New("bad command argument")
	// ErrNegative reports a value that must not be negative.
	ErrNegative = errors.New("value must not be negative")
)

// Kind identifies a command.
type Kind uint8

const (
	Stop Kind = iota + 1
	Show
	Hide
	SetLearningRate
	SetMomentum
	SetMagnitudeStart
	SetMagnitudeEnd
	SetIterations
)

var tokens = map[string]Kind{
	"stop":     Stop,
	"show":     Show,
	"hide":     Hide,
	"setlr":    SetLearningRate,
	"setmom":   SetMomentum,
	"setmag0":  SetMagnitudeStart,
	"setmag1":  SetMagnitudeEnd,
	"setiters": SetIterations,
}

// Command is one parsed operator line.
type Command struct {
	Kind  Kind
	Value float64
	Count int
}

// Parse maps a line to a command. Blank lines yield a zero Command and no
// error.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, nil
	}
	kind, ok := tokens[fields[0]]
	if !ok {
		return Command{}, fmt.Errorf("%w [%s]", ErrUnknown, strings.TrimSpace(line))
	}
	cmd := Command{Kind: kind}
	switch kind {
	case Stop, Show, Hide:
		return cmd, nil
	case SetIterations:
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("%w: no argument on command %s", ErrArgument, fields[0])
		}
		n, err := strconv.ParseUint(fields[1], 10, 31)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %s: %v", ErrArgument, fields[0], err)
		}
		cmd.Count = int(n)
		return cmd, nil
	default:
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("%w: no argument on command %s", ErrArgument, fields[0])
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %s: %v", ErrArgument, fields[0], err)
		}
		cmd.Value = v
		return cmd, nil
	}
}
