package config

import (
	"errors"
	"fmt"
)

type TargetClass string

const (
	Small TargetClass = "small"
	Big   TargetClass = "big"
	Even  TargetClass = "even"
	Odd   TargetClass = "odd"
)

var ErrUnknownTarget = errors.New("unknown target class")

func ParseTargetClass(s string) (TargetClass, error) {
	switch TargetClass(s) {
	case Small, Big, Even, Odd:
		return TargetClass(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
}

// Matches reports whether the final digit of a draw satisfies the class.
func (t TargetClass) Matches(digit int) bool {
	switch t {
	case Small:
		return digit <= 4
	case Big:
		return digit >= 5
	case Even:
		return digit%2 == 0
	case Odd:
		return digit%2 == 1
	default:
		return false
	}
}
