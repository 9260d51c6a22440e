package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vector is a fixed-dimension embedding. The in-memory representation is
// float32, matching the durable vector column; similarity math accumulates
// in float64.
type Vector []float32

// Norm returns the Euclidean (L2) norm.
func (v Vector) Norm() float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// EncodeVector renders v in the durable literal form [v0,v1,...,vD-1].
func EncodeVector(v Vector) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector parses the bracketed literal form via a typed numeric-list
// decode. Anything but a flat list of numbers is rejected. When dim > 0
// the parsed length must match exactly; a mismatch wraps
// ErrVectorDimMismatch.
func ParseVector(s string, dim int) (Vector, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("vector literal must be bracketed, got %q", truncate(s, 32))
	}
	var v Vector
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("parse vector literal: %w", err)
	}
	if dim > 0 && len(v) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVectorDimMismatch, len(v), dim)
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
