package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"wastewise/internal/core"
	wlog "wastewise/internal/log"
	"wastewise/internal/ports"
)

// maxParallelEvaluations bounds the evaluation fan-out of one board.
const maxParallelEvaluations = 8

// ChallengeCard is one challenge as seen by a user.
type ChallengeCard struct {
	Challenge     core.Challenge
	Status        core.Status
	Participating bool
	JoinedAt      time.Time
	Progress      core.ChallengeProgress
	// Err is set when the challenge definition cannot be evaluated. The
	// rest of the board is unaffected.
	Err error
}

// ChallengeService builds the challenge board and manages participation.
type ChallengeService struct {
	challenges     ports.ChallengeReader
	participations ports.ParticipationStore
	logs           ports.LogReader
	loc            *time.Location
	now            func() time.Time
}

func NewChallengeService(challenges ports.ChallengeReader, participations ports.ParticipationStore, logs ports.LogReader, loc *time.Location) *ChallengeService {
	if loc == nil {
		loc = time.UTC
	}
	return &ChallengeService{
		challenges:     challenges,
		participations: participations,
		logs:           logs,
		loc:            loc,
		now:            time.Now,
	}
}

func (s *ChallengeService) today() core.Date {
	return core.DateOf(s.now().In(s.loc))
}

// Board lists every challenge with its status, the user's participation
// and progress recomputed from the user's log.
func (s *ChallengeService) Board(ctx context.Context, userID string) ([]ChallengeCard, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &ValidationError{Field: "user", Err: core.ErrEmptyUserID}
	}

	var (
		challenges []core.Challenge
		parts      []core.Participation
		entries    []core.WasteLogEntry
	)

	load, lctx := errgroup.WithContext(ctx)
	load.Go(func() error {
		var err error
		challenges, err = s.challenges.ListChallenges(lctx)
		if err != nil {
			return fmt.Errorf("list challenges: %w", err)
		}
		return nil
	})
	load.Go(func() error {
		var err error
		parts, err = s.participations.ListParticipations(lctx, userID)
		if err != nil {
			return fmt.Errorf("list participations: %w", err)
		}
		return nil
	})
	load.Go(func() error {
		var err error
		entries, err = s.logs.ListEntries(lctx, userID, ports.LogFilter{})
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		return nil
	})
	if err := load.Wait(); err != nil {
		return nil, err
	}

	joined := make(map[string]time.Time, len(parts))
	for _, p := range parts {
		joined[p.ChallengeID] = p.JoinedAt
	}

	today := s.today()
	cards := make([]ChallengeCard, len(challenges))

	eval, ectx := errgroup.WithContext(ctx)
	eval.SetLimit(maxParallelEvaluations)
	for i, ch := range challenges {
		eval.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			res := core.Evaluate(ch, entries)
			if res.Err != nil {
				slog.WarnContext(ctx, "Challenge cannot be evaluated",
					wlog.FieldOperation, wlog.OpEvaluate,
					wlog.FieldChallengeID, ch.ID,
					wlog.FieldError, res.Err)
			}
			at, ok := joined[ch.ID]
			cards[i] = ChallengeCard{
				Challenge:     res.Challenge,
				Status:        core.StatusOn(ch, today),
				Participating: ok,
				JoinedAt:      at,
				Progress:      res.Progress,
				Err:           res.Err,
			}
			return nil
		})
	}
	if err := eval.Wait(); err != nil {
		return nil, err
	}

	return cards, nil
}

// Join enrols userID in an active challenge.
func (s *ChallengeService) Join(ctx context.Context, userID, challengeID string) error {
	ch, err := s.activeChallenge(ctx, userID, challengeID)
	if err != nil {
		return err
	}

	p := core.Participation{ChallengeID: ch.ID, UserID: userID, JoinedAt: s.now().UTC()}
	if err := s.participations.Join(ctx, p); err != nil {
		return fmt.Errorf("join challenge %s: %w", ch.ID, err)
	}

	wlog.NewStructuredLogger(wlog.FromContext(ctx)).LogParticipation(ctx, wlog.OpJoin, ch.ID, userID)
	return nil
}

// Leave withdraws userID from an active challenge.
func (s *ChallengeService) Leave(ctx context.Context, userID, challengeID string) error {
	ch, err := s.activeChallenge(ctx, userID, challengeID)
	if err != nil {
		return err
	}

	if err := s.participations.Leave(ctx, ch.ID, userID); err != nil {
		return fmt.Errorf("leave challenge %s: %w", ch.ID, err)
	}

	wlog.NewStructuredLogger(wlog.FromContext(ctx)).LogParticipation(ctx, wlog.OpLeave, ch.ID, userID)
	return nil
}

func (s *ChallengeService) activeChallenge(ctx context.Context, userID, challengeID string) (core.Challenge, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Challenge{}, &ValidationError{Field: "user", Err: core.ErrEmptyUserID}
	}

	ch, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, ports.ErrChallengeNotFound) {
			return core.Challenge{}, err
		}
		return core.Challenge{}, fmt.Errorf("get challenge %s: %w", challengeID, err)
	}

	if status := core.StatusOn(ch, s.today()); !status.AllowsParticipationChange() {
		return core.Challenge{}, fmt.Errorf("%w: challenge %s is %s", ErrChallengeNotActive, ch.ID, status)
	}
	return ch, nil
}
