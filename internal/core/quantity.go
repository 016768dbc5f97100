package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// MaxQuantity bounds a single log entry so a typo cannot swamp the totals.
const MaxQuantity = 10000.0

// ParseQuantity converts a user-supplied kilogram amount to a float.
//
// It accepts both dot (1.25) and comma (1,25) decimal separators. Signs,
// exponents and anything other than digits are rejected; zero is allowed
// since an item may weigh less than the scale resolution.
//
// Examples:
//
//	ParseQuantity("1.5")  -> 1.5, nil
//	ParseQuantity("0,25") -> 0.25, nil
//	ParseQuantity("-1")   -> 0, ErrInvalidQuantity
func ParseQuantity(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidQuantity
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: must not be signed", ErrInvalidQuantity)
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidQuantity
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return 0, ErrInvalidQuantity
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return 0, ErrInvalidQuantity
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	q, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(q, 0) {
		return 0, ErrInvalidQuantity
	}
	if q > MaxQuantity {
		return 0, fmt.Errorf("%w: exceeds %g kg", ErrInvalidQuantity, MaxQuantity)
	}
	return q, nil
}
