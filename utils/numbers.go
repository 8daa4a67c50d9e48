package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"zeitprognose/models"
)

// ParseNumber parses a spreadsheet number. A decimal comma is accepted
// ("10,5"), as are thousands separators in either convention
// ("1.234,5", "1,234.5").
func ParseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a number: %w", s, models.ErrTypeCoercion)
	}
	return v, nil
}

// ParsePositiveNumber is ParseNumber restricted to values above zero.
func ParsePositiveNumber(s string) (float64, error) {
	v, err := ParseNumber(s)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%q is not positive: %w", s, models.ErrTypeCoercion)
	}
	return v, nil
}

// ParsePositiveInt accepts integral numbers written as "2" or "2.0".
func ParsePositiveInt(s string) (int, error) {
	v, err := ParseNumber(s)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, fmt.Errorf("%q is not an integer: %w", s, models.ErrTypeCoercion)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%q is not positive: %w", s, models.ErrTypeCoercion)
	}
	return int(v), nil
}
