package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/plantnode/internal/journal"
	"github.com/nerrad567/plantnode/internal/sensor"
)

const (
	defaultReadingsLimit = 50
	maxReadingsLimit     = 500
)

// readingView is one reading as rendered in JSON responses.
type readingView struct {
	Sensor string `json:"sensor"`
	Name   string `json:"name"`
	Value  int    `json:"value"`
	Text   string `json:"text"`
	Unit   string `json:"unit,omitempty"`
}

// snapshotView is a snapshot as rendered in JSON responses and events.
type snapshotView struct {
	TakenAt  string        `json:"taken_at"`
	Readings []readingView `json:"readings"`
}

func newSnapshotView(snap sensor.Snapshot) snapshotView {
	view := snapshotView{
		TakenAt:  snap.TakenAt.UTC().Format(time.RFC3339Nano),
		Readings: make([]readingView, 0, snap.Len()),
	}
	for _, r := range snap.Readings {
		view.Readings = append(view.Readings, readingView{
			Sensor: r.Kind.Key(),
			Name:   r.Kind.Name(),
			Value:  r.Value,
			Text:   r.Text(),
			Unit:   r.Kind.Unit(),
		})
	}
	return view
}

type stateResponse struct {
	NodeStatus
	WebSocketClients int           `json:"websocket_clients"`
	Latest           *snapshotView `json:"latest,omitempty"`
}

// handleState returns the live node status and the latest snapshot.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	resp := stateResponse{
		NodeStatus:       s.status.Status(),
		WebSocketClients: s.hub.ClientCount(),
	}
	if snap, ok := s.latestSnapshot(); ok {
		view := newSnapshotView(snap)
		resp.Latest = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReadings returns journal history, newest first.
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "reading journal is disabled")
		return
	}

	limit, err := parseReadingsLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.journal.Recent(r.Context(), r.URL.Query().Get("sensor"), limit)
	if err != nil {
		if errors.Is(err, journal.ErrInvalidArgument) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("reading journal query failed", "error", err)
		writeInternalError(w, "failed to query readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"readings": entries,
		"count":    len(entries),
	})
}

func parseReadingsLimit(raw string) (int, error) {
	if raw == "" {
		return defaultReadingsLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("invalid limit")
	}
	if limit > maxReadingsLimit {
		return 0, errors.New("limit exceeds maximum")
	}
	return limit, nil
}
