package google

import (
	"strings"
	"testing"

	"wastewise/internal/core"
)

func TestParseChallenges(t *testing.T) {
	values := [][]interface{}{
		{"Target", "ID", "Title", "Category", "Start", "End", "Description"},
		{5.0, "jan-recycle", "January recycling", "Recyclable", "2024-01-01", "2024-01-31", "Recycle 5 kg"},
		{"2,5", "feb-compost", "February compost", "compostable", "2024-02-01", "2024-02-29"},
		{"", "", "", "", "", "", ""},
		{1, "#draft", "Draft", "Landfill", "2024-03-01", "2024-03-31"},
		{1, "bad-cat", "Glass", "Glass", "2024-03-01", "2024-03-31"},
		{"lots", "bad-target", "T", "Landfill", "2024-03-01", "2024-03-31"},
		{1, "jan-recycle", "Dup", "Landfill", "2024-03-01", "2024-03-31"},
		{0, "zero-target", "Zero", "Landfill", "2024-03-01", "2024-03-31"},
	}

	got, rowErrs, err := parseChallenges(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 challenges, got %d: %+v", len(got), got)
	}
	if len(rowErrs) != 3 {
		t.Fatalf("expected 3 row errors, got %v", rowErrs)
	}

	first := got[0]
	if first.ID != "jan-recycle" || first.Category != core.Recyclable || first.TargetReduction != 5 ||
		first.StartDate.String() != "2024-01-01" || first.Description != "Recycle 5 kg" {
		t.Fatalf("unexpected first challenge: %+v", first)
	}
	if got[1].TargetReduction != 2.5 || got[1].Category != core.Compostable || got[1].Description != "" {
		t.Fatalf("unexpected second challenge: %+v", got[1])
	}
	// a zero target is kept; the evaluator reports it on the card
	if got[2].ID != "zero-target" {
		t.Fatalf("unexpected third challenge: %+v", got[2])
	}
}

func TestParseChallenges_MissingHeader(t *testing.T) {
	_, _, err := parseChallenges([][]interface{}{{"ID", "Title", "Category"}})
	if err == nil {
		t.Fatal("expected header error")
	}
	if !strings.Contains(err.Error(), "unexpected challenges header") || !strings.Contains(err.Error(), "Start") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseChallenges_Empty(t *testing.T) {
	got, rowErrs, err := parseChallenges(nil)
	if err != nil || len(got) != 0 || len(rowErrs) != 0 {
		t.Fatalf("expected empty result, got %v %v %v", got, rowErrs, err)
	}
}
