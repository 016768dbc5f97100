package http

import (
	"net/http"
	"sync/atomic"

	"wastewise/internal/core"
	"wastewise/internal/services"
)

type entryJSON struct {
	ID       string        `json:"id"`
	Date     core.Date     `json:"date"`
	Category core.Category `json:"category"`
	ItemName string        `json:"item_name"`
	Quantity float64       `json:"quantity_kg"`
}

type summaryJSON struct {
	Summary core.Summary `json:"summary"`
	Recent  []entryJSON  `json:"recent"`
}

func toEntryJSON(e core.WasteLogEntry) entryJSON {
	return entryJSON{
		ID:       e.ID,
		Date:     e.Date,
		Category: e.Category,
		ItemName: e.ItemName,
		Quantity: e.Quantity,
	}
}

func toEntriesJSON(entries []core.WasteLogEntry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryJSON(e))
	}
	return out
}

func (s *Server) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	parser := NewRequestBodyParser(w, r)
	if err := parser.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	entry, err := s.logs.CreateEntry(r.Context(), userID, services.LogInput{
		Date:     parser.Get("date"),
		Category: parser.Get("category"),
		ItemName: parser.Get("item_name"),
		Quantity: parser.Get("quantity"),
	})
	if err != nil {
		ServiceError(r.Context(), err).Write(w)
		return
	}

	atomic.AddInt64(&s.entriesCreated, 1)
	NewJSONResponse().Status(http.StatusCreated).Body(toEntryJSON(entry)).Write(w)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	filter, err := ParseLogFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	entries, err := s.logs.ListEntries(r.Context(), userID, filter)
	if err != nil {
		ServiceError(r.Context(), err).Write(w)
		return
	}

	NewJSONResponse().Body(map[string]any{"entries": toEntriesJSON(entries)}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	d, err := s.dashboard.Summary(r.Context(), userID)
	if err != nil {
		ServiceError(r.Context(), err).Write(w)
		return
	}

	NewJSONResponse().Body(summaryJSON{
		Summary: d.Summary,
		Recent:  toEntriesJSON(d.Recent),
	}).Write(w)
}
