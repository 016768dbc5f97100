package google

import (
	"fmt"
	"strings"

	"wastewise/internal/core"
)

var challengeHeaders = []string{"ID", "Title", "Description", "Category", "Start", "End", "Target"}

// parseChallenges converts a values matrix (as returned by Sheets API) into
// challenges. The first row must hold the headers; column order is free.
// Bad rows are returned as errors alongside the good ones.
func parseChallenges(values [][]interface{}) ([]core.Challenge, []error, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}

	headers := toStrings(values[0])
	cols := make(map[string]int, len(challengeHeaders))
	var missing []string
	for _, h := range challengeHeaders {
		idx := indexOf(headers, h)
		if idx == -1 && h != "Description" {
			missing = append(missing, h)
		}
		cols[h] = idx
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("unexpected challenges header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var out []core.Challenge
	var rowErrs []error
	seen := map[string]bool{}
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		id := safeGet(row, cols["ID"])
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		if seen[id] {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: duplicate challenge id %q", i+1, id))
			continue
		}

		c, err := parseChallengeRow(row, cols)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	return out, rowErrs, nil
}

func parseChallengeRow(row []string, cols map[string]int) (core.Challenge, error) {
	cat, err := core.ParseCategory(safeGet(row, cols["Category"]))
	if err != nil {
		return core.Challenge{}, err
	}
	start, err := core.ParseDate(safeGet(row, cols["Start"]))
	if err != nil {
		return core.Challenge{}, fmt.Errorf("start: %w", err)
	}
	end, err := core.ParseDate(safeGet(row, cols["End"]))
	if err != nil {
		return core.Challenge{}, fmt.Errorf("end: %w", err)
	}
	target, ok := parseKilograms(safeGet(row, cols["Target"]))
	if !ok {
		return core.Challenge{}, fmt.Errorf("invalid target %q", safeGet(row, cols["Target"]))
	}
	return core.Challenge{
		ID:              safeGet(row, cols["ID"]),
		Title:           safeGet(row, cols["Title"]),
		Description:     safeGet(row, cols["Description"]),
		Category:        cat,
		StartDate:       start,
		EndDate:         end,
		TargetReduction: target,
	}, nil
}
