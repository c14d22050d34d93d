package cesure

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cesure-forge/internal/gate"
)

// ErrMalformed reports an unparsable network text form.
var ErrMalformed = errors.New("cesure: malformed text")

const (
	outputMarker = "\nOUTPUT_GATE\n"
	memoryMarker = "\nMEMORY_GATE\n"
)

// MarshalText writes the header "<infos_dim> <context_dim> <output_dim>",
// then each gate after its marker line. Sequence state is not written.
func (c *Cesure) MarshalText() ([]byte, error) {
	output, err := c.output.MarshalText()
	if err != nil {
		return nil, fmt.Errorf("output gate: %w", err)
	}
	memory, err := c.memory.MarshalText()
	if err != nil {
		return nil, fmt.Errorf("memory gate: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d %d", c.infosDim, c.contextDim, c.outputDim)
	b.WriteString(outputMarker)
	b.Write(output)
	b.WriteString(memoryMarker)
	b.Write(memory)
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// UnmarshalText parses the form written by MarshalText. Both markers must
// appear exactly once and the gates must match the header.
func (c *Cesure) UnmarshalText(text []byte) error {
	s := strings.TrimRight(string(text), "\n")
	head, rest, ok := strings.Cut(s, outputMarker)
	if !ok || strings.Contains(rest, outputMarker) {
		return fmt.Errorf("%w: want exactly one OUTPUT_GATE marker", ErrMalformed)
	}
	outputText, memoryText, ok := strings.Cut(rest, memoryMarker)
	if !ok || strings.Contains(memoryText, memoryMarker) {
		return fmt.Errorf("%w: want exactly one MEMORY_GATE marker", ErrMalformed)
	}

	header := strings.Fields(head)
	if strings.Contains(head, "\n") || len(header) != 3 {
		return fmt.Errorf("%w: header %q", ErrMalformed, head)
	}
	var dims [3]int
	for i := range dims {
		v, err := strconv.Atoi(header[i])
		if err != nil {
			return fmt.Errorf("%w: header field %d: %v", ErrMalformed, i, err)
		}
		dims[i] = v
	}

	var output, memory gate.Gate
	if err := output.UnmarshalText([]byte(outputText)); err != nil {
		return fmt.Errorf("%w: output gate: %w", ErrMalformed, err)
	}
	if err := memory.UnmarshalText([]byte(memoryText)); err != nil {
		return fmt.Errorf("%w: memory gate: %w", ErrMalformed, err)
	}
	parsed, err := NewFromGates(dims[0], dims[1], dims[2], &output, &memory)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	*c = *parsed
	return nil
}

// Save writes the text form to path.
func (c *Cesure) Save(path string) error {
	text, err := c.MarshalText()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, text, 0o644); err != nil {
		return fmt.Errorf("save network: %w", err)
	}
	return nil
}

// Load reads a network written by Save.
func Load(path string) (*Cesure, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load network: %w", err)
	}
	c := &Cesure{}
	if err := c.UnmarshalText(text); err != nil {
		return nil, fmt.Errorf("load network %s: %w", path, err)
	}
	return c, nil
}
