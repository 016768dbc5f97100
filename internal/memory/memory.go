package memory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"wastewise/internal/core"
	"wastewise/internal/ports"
)

// SeedFile is the name of the challenge catalogue read by NewFromFiles.
const SeedFile = "seed_challenges.txt"

// Store keeps logs, challenges and participations in process memory.
type Store struct {
	mu             sync.Mutex
	entries        []core.WasteLogEntry
	challenges     []core.Challenge
	participations map[string]core.Participation
}

var _ ports.Store = (*Store)(nil)

func New(challenges []core.Challenge) *Store {
	return &Store{
		challenges:     dedupeChallenges(challenges),
		participations: make(map[string]core.Participation),
	}
}

// NewFromFiles seeds the catalogue from base/seed_challenges.txt, one
// challenge per line:
//
//	id|title|description|category|start|end|target_kg
//
// When the file is missing or empty a default catalogue for the current
// month is used. A file that cannot be read or parsed is an error.
func NewFromFiles(base string) (*Store, error) {
	challenges, err := readChallenges(filepath.Join(base, SeedFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load challenge seed: %w", err)
	}
	if len(challenges) == 0 {
		challenges = defaultChallenges(core.DateOf(time.Now()))
	}
	return New(challenges), nil
}

// AppendEntry stores a validated entry.
func (s *Store) AppendEntry(_ context.Context, e core.WasteLogEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *Store) ListEntries(_ context.Context, userID string, f ports.LogFilter) ([]core.WasteLogEntry, error) {
	s.mu.Lock()
	out := make([]core.WasteLogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.UserID == userID && f.Match(e.Date) {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) RecentEntries(_ context.Context, userID string, limit int) ([]core.WasteLogEntry, error) {
	s.mu.Lock()
	var out []core.WasteLogEntry
	// walk backwards so later insertions win ties on the same date
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].UserID == userID {
			out = append(out, s.entries[i])
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListChallenges(_ context.Context) ([]core.Challenge, error) {
	s.mu.Lock()
	out := append([]core.Challenge(nil), s.challenges...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (s *Store) GetChallenge(_ context.Context, id string) (core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.challenges {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Challenge{}, fmt.Errorf("%w: %s", ports.ErrChallengeNotFound, id)
}

func (s *Store) ListParticipations(_ context.Context, userID string) ([]core.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Participation, 0)
	for _, p := range s.participations {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChallengeID < out[j].ChallengeID })
	return out, nil
}

func (s *Store) Join(_ context.Context, p core.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasChallenge(p.ChallengeID) {
		return fmt.Errorf("%w: %s", ports.ErrChallengeNotFound, p.ChallengeID)
	}
	key := participationKey(p.ChallengeID, p.UserID)
	if _, ok := s.participations[key]; ok {
		return ports.ErrAlreadyParticipating
	}
	s.participations[key] = p
	return nil
}

func (s *Store) Leave(_ context.Context, challengeID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participationKey(challengeID, userID)
	if _, ok := s.participations[key]; !ok {
		return ports.ErrNotParticipating
	}
	delete(s.participations, key)
	return nil
}

func (s *Store) hasChallenge(id string) bool {
	for _, c := range s.challenges {
		if c.ID == id {
			return true
		}
	}
	return false
}

func participationKey(challengeID, userID string) string {
	return challengeID + "\x00" + userID
}

func readChallenges(path string) ([]core.Challenge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []core.Challenge
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c, err := ParseChallengeLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// ParseChallengeLine parses one pipe-separated catalogue line.
func ParseChallengeLine(line string) (core.Challenge, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 7 {
		return core.Challenge{}, fmt.Errorf("expected 7 fields, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return core.Challenge{}, fmt.Errorf("missing challenge id")
	}
	cat, err := core.ParseCategory(parts[3])
	if err != nil {
		return core.Challenge{}, err
	}
	start, err := core.ParseDate(parts[4])
	if err != nil {
		return core.Challenge{}, fmt.Errorf("start date: %w", err)
	}
	end, err := core.ParseDate(parts[5])
	if err != nil {
		return core.Challenge{}, fmt.Errorf("end date: %w", err)
	}
	target, err := strconv.ParseFloat(strings.ReplaceAll(parts[6], ",", "."), 64)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("target: %w", err)
	}
	// Definitions are validated when progress is evaluated.
	return core.Challenge{
		ID:              parts[0],
		Title:           parts[1],
		Description:     parts[2],
		Category:        cat,
		StartDate:       start,
		EndDate:         end,
		TargetReduction: target,
	}, nil
}

func defaultChallenges(today core.Date) []core.Challenge {
	first := core.NewDate(today.Year(), int(today.Month()), 1)
	last := core.DateOf(first.AddDate(0, 1, -1))
	return []core.Challenge{
		{
			ID:              "recycle-month",
			Title:           "Recycle more this month",
			Description:     "Divert 5 kg of recyclables from landfill.",
			Category:        core.Recyclable,
			StartDate:       first,
			EndDate:         last,
			TargetReduction: 5,
		},
		{
			ID:              "compost-month",
			Title:           "Compost your scraps",
			Description:     "Compost 3 kg of organic waste.",
			Category:        core.Compostable,
			StartDate:       first,
			EndDate:         last,
			TargetReduction: 3,
		},
	}
}

func dedupeChallenges(in []core.Challenge) []core.Challenge {
	seen := map[string]struct{}{}
	out := make([]core.Challenge, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
