package gate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cesure-forge/internal/activation"
	"cesure-forge/internal/matrix"
)

// ErrMalformed reports an unparsable gate text form.
var ErrMalformed = errors.New("gate: malformed text")

// MarshalText writes the header "<input_dim> <output_dim> <nb_layers> <activation>"
// followed by one line per layer matrix.
func (g *Gate) MarshalText() ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d %d %s", g.inputDim, g.outputDim, len(g.layers), g.activation)
	for i, l := range g.layers {
		text, err := l.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		b.WriteByte('\n')
		b.Write(text)
	}
	return []byte(b.String()), nil
}

// UnmarshalText parses the form written by MarshalText. The line count must
// be exactly nb_layers+1 and the layers must chain.
func (g *Gate) UnmarshalText(text []byte) error {
	lines := strings.Split(strings.TrimRight(string(text), "\n"), "\n")
	if len(lines) < 2 {
		return fmt.Errorf("%w: want header and at least one layer, got %d lines", ErrMalformed, len(lines))
	}
	header := strings.Fields(lines[0])
	if len(header) != 4 {
		return fmt.Errorf("%w: header %q", ErrMalformed, lines[0])
	}
	var dims [3]int
	for i := range dims {
		v, err := strconv.Atoi(header[i])
		if err != nil {
			return fmt.Errorf("%w: header field %d: %v", ErrMalformed, i, err)
		}
		dims[i] = v
	}
	act, err := activation.Parse(header[3])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(lines) != dims[2]+1 {
		return fmt.Errorf("%w: header announces %d layers, found %d", ErrMalformed, dims[2], len(lines)-1)
	}
	layers := make([]*matrix.Matrix, dims[2])
	for i := range layers {
		m, err := matrix.Parse(lines[i+1])
		if err != nil {
			return fmt.Errorf("%w: layer %d: %w", ErrMalformed, i, err)
		}
		layers[i] = m
	}
	parsed, err := NewWithLayers(dims[0], dims[1], layers, act)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	*g = *parsed
	return nil
}
