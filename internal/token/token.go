// Package token defines the values exchanged between ANN components.
package token

import (
	"fmt"
	"strings"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
)

// Type tags a token variant.
type Type int

// Token variants.
const (
	TypeMatrix Type = iota
	TypeVector
)

func (t Type) String() string {
	switch t {
	case TypeMatrix:
		return "matrix"
	case TypeVector:
		return "vector"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Token is a tagged data carrier.
type Token interface {
	Type() Type
	Clone() Token
	String() string
}

// Matrix wraps a matrix.
type Matrix struct {
	m *matrix.Matrix
}

// NewMatrix wraps m. The token does not copy it.
func NewMatrix(m *matrix.Matrix) *Matrix {
	if m == nil {
		fatal.Raise("token.NewMatrix", fatal.ErrInvalidArgument, "nil matrix")
	}
	return &Matrix{m: m}
}

// Type returns TypeMatrix.
func (t *Matrix) Type() Type { return TypeMatrix }

// Matrix returns the wrapped matrix.
func (t *Matrix) Matrix() *matrix.Matrix { return t.m }

// Clone deep-copies the wrapped matrix.
func (t *Matrix) Clone() Token { return &Matrix{m: t.m.Clone()} }

func (t *Matrix) String() string {
	return fmt.Sprintf("token.Matrix%v", t.m.Dims())
}

// Vector is an ordered bunch of tokens.
type Vector struct {
	Items []Token
}

// Type returns TypeVector.
func (v *Vector) Type() Type { return TypeVector }

// Clone deep-copies every item.
func (v *Vector) Clone() Token {
	items := make([]Token, len(v.Items))
	for i, it := range v.Items {
		items[i] = it.Clone()
	}
	return &Vector{Items: items}
}

func (v *Vector) String() string {
	parts := make([]string, len(v.Items))
	for i, it := range v.Items {
		parts[i] = it.String()
	}
	return "token.Vector[" + strings.Join(parts, " ") + "]"
}

// ToMatrix converts tk to its matrix. Any other variant, or a nil token, is a
// fatal type mismatch attributed to op.
func ToMatrix(op string, tk Token) *matrix.Matrix {
	if tk == nil {
		fatal.Raise(op, fatal.ErrTypeMismatch, "expected a matrix token, got nil")
	}
	mt, ok := tk.(*Matrix)
	if !ok {
		fatal.Raise(op, fatal.ErrTypeMismatch, "expected a matrix token, got %s", tk.Type())
	}
	return mt.m
}
