package object

import (
	"errors"
	"fmt"
)

// ErrIncomparable is returned when two values have no defined equality or
// ordering.
var ErrIncomparable = errors.New("incomparable values")

// Equal compares two values of the same variant. Integer, Boolean, String
// and Null pairs are comparable; anything else, including any cross-variant
// pair, returns ErrIncomparable.
func Equal(a, b Object) (bool, error) {
	switch l := a.(type) {
	case *Integer:
		if r, ok := b.(*Integer); ok {
			return l.Value == r.Value, nil
		}
	case *Boolean:
		if r, ok := b.(*Boolean); ok {
			return l.Value == r.Value, nil
		}
	case *String:
		if r, ok := b.(*String); ok {
			return l.Value == r.Value, nil
		}
	case *Null:
		if _, ok := b.(*Null); ok {
			return true, nil
		}
	}
	return false, incomparable(a, b)
}

// Compare orders two values, returning -1, 0 or 1. Only Integer-Integer and
// Boolean-Boolean pairs are ordered, with false < true.
func Compare(a, b Object) (int, error) {
	switch l := a.(type) {
	case *Integer:
		if r, ok := b.(*Integer); ok {
			switch {
			case l.Value < r.Value:
				return -1, nil
			case l.Value > r.Value:
				return 1, nil
			}
			return 0, nil
		}
	case *Boolean:
		if r, ok := b.(*Boolean); ok {
			return boolRank(l.Value) - boolRank(r.Value), nil
		}
	}
	return 0, incomparable(a, b)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func incomparable(a, b Object) error {
	return fmt.Errorf("%w: %s and %s", ErrIncomparable, typeName(a), typeName(b))
}

func typeName(o Object) Type {
	if o == nil {
		return "nil"
	}
	return o.Type()
}
