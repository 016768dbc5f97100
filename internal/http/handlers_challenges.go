package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"wastewise/internal/core"
	"wastewise/internal/services"
)

type cardJSON struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description,omitempty"`
	Category        core.Category           `json:"category"`
	StartDate       core.Date               `json:"start_date"`
	EndDate         core.Date               `json:"end_date"`
	TargetReduction float64                 `json:"target_reduction_kg"`
	Status          core.Status             `json:"status"`
	Participating   bool                    `json:"participating"`
	JoinedAt        *time.Time              `json:"joined_at,omitempty"`
	Progress        *core.ChallengeProgress `json:"progress,omitempty"`
	Error           string                  `json:"error,omitempty"`
}

func toCardJSON(c services.ChallengeCard) cardJSON {
	out := cardJSON{
		ID:              c.Challenge.ID,
		Title:           c.Challenge.Title,
		Description:     c.Challenge.Description,
		Category:        c.Challenge.Category,
		StartDate:       c.Challenge.StartDate,
		EndDate:         c.Challenge.EndDate,
		TargetReduction: c.Challenge.TargetReduction,
		Status:          c.Status,
		Participating:   c.Participating,
	}
	if c.Participating && !c.JoinedAt.IsZero() {
		joined := c.JoinedAt
		out.JoinedAt = &joined
	}
	if c.Err != nil {
		out.Error = c.Err.Error()
	} else {
		progress := c.Progress
		out.Progress = &progress
	}
	return out
}

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	cards, err := s.challenges.Board(r.Context(), userID)
	if err != nil {
		ServiceError(r.Context(), err).Write(w)
		return
	}

	out := make([]cardJSON, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardJSON(c))
	}
	NewJSONResponse().Body(map[string]any{"challenges": out}).Write(w)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.changeParticipation(w, r, s.challenges.Join)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.changeParticipation(w, r, s.challenges.Leave)
}

func (s *Server) changeParticipation(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, userID, challengeID string) error) {
	userID, err := UserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := change(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		ServiceError(r.Context(), err).Write(w)
		return
	}

	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
