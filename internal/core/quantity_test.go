package core

import (
	"errors"
	"testing"
)

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.5", 1.5, true},
		{"1,5", 1.5, true},
		{" 2 ", 2, true},
		{"0", 0, true},
		{".25", 0.25, true},
		{"3.", 3, true},
		{"", 0, false},
		{".", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"1e3", 0, false},
		{"1.2.3", 0, false},
		{"abc", 0, false},
		{"10001", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseQuantity(tc.in)
			if tc.ok {
				if err != nil {
					t.Fatalf("ParseQuantity(%q) unexpected error: %v", tc.in, err)
				}
				if got != tc.want {
					t.Fatalf("ParseQuantity(%q) = %v, want %v", tc.in, got, tc.want)
				}
				return
			}
			if !errors.Is(err, ErrInvalidQuantity) {
				t.Fatalf("ParseQuantity(%q) expected ErrInvalidQuantity, got %v", tc.in, err)
			}
		})
	}
}
