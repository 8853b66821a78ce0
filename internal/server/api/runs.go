// Package api provides HTTP API handlers for stored analysis runs.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/retailsight/internal/store"
)

// RunHandler handles HTTP requests for run resources.
type RunHandler struct {
	store *store.Store
}

// NewRunHandler creates a new RunHandler with the given store.
func NewRunHandler(s *store.Store) *RunHandler {
	return &RunHandler{store: s}
}

// ServeHTTP routes requests by path.
// Expected paths: /api/runs, /api/runs/{id}, /api/runs/{id}/events and
// /api/runs/{id}/snapshots.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/runs")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "events", "snapshots":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if sub == "events" {
			h.events(w, r, id)
		} else {
			h.snapshots(w, r, id)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type runResponse struct {
	ID              string  `json:"id"`
	Source          string  `json:"source"`
	OutputPath      string  `json:"output_path,omitempty"`
	FrameWidth      int     `json:"frame_width"`
	FrameHeight     int     `json:"frame_height"`
	EntranceLineX   int     `json:"entrance_line_x"`
	FrameSkip       int     `json:"frame_skip"`
	StartedAt       string  `json:"started_at"`
	FinishedAt      *string `json:"finished_at"`
	FramesTotal     int     `json:"frames_total"`
	FramesProcessed int     `json:"frames_processed"`
	EntryCount      int     `json:"entry_count"`
}

type listRunsResponse struct {
	Runs []runResponse `json:"runs"`
}

type eventResponse struct {
	IdentityID int    `json:"identity_id"`
	CustomerID int    `json:"customer_Id"`
	OccurredAt string `json:"occurred_at"`
}

type listEventsResponse struct {
	RunID  string          `json:"run_id"`
	Events []eventResponse `json:"events"`
}

type snapshotResponse struct {
	Path        string `json:"path"`
	FrameNumber int    `json:"frame_number"`
	CapturedAt  string `json:"captured_at"`
}

type listSnapshotsResponse struct {
	RunID     string             `json:"run_id"`
	Snapshots []snapshotResponse `json:"snapshots"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(run *store.Run) runResponse {
	resp := runResponse{
		ID:              run.ID,
		Source:          run.Source,
		OutputPath:      run.OutputPath,
		FrameWidth:      run.FrameWidth,
		FrameHeight:     run.FrameHeight,
		EntranceLineX:   run.EntranceLineX,
		FrameSkip:       run.FrameSkip,
		StartedAt:       run.StartedAt.Format(time.RFC3339),
		FramesTotal:     run.FramesTotal,
		FramesProcessed: run.FramesProcessed,
		EntryCount:      run.EntryCount,
	}
	if run.FinishedAt != nil {
		finished := run.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &finished
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/runs.
func (h *RunHandler) list(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.Runs().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	response := listRunsResponse{Runs: make([]runResponse, 0, len(runs))}
	for _, run := range runs {
		response.Runs = append(response.Runs, toResponse(run))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/runs/{id}.
func (h *RunHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	run, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(run))
}

// delete handles DELETE /api/runs/{id}.
func (h *RunHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Runs().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// events handles GET /api/runs/{id}/events.
func (h *RunHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	events, err := h.store.Events().ListByRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{RunID: id, Events: make([]eventResponse, 0, len(events))}
	for _, e := range events {
		response.Events = append(response.Events, eventResponse{
			IdentityID: e.IdentityID,
			CustomerID: e.Total,
			OccurredAt: e.OccurredAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// snapshots handles GET /api/runs/{id}/snapshots.
func (h *RunHandler) snapshots(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	snaps, err := h.store.Snapshots().ListByRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	response := listSnapshotsResponse{RunID: id, Snapshots: make([]snapshotResponse, 0, len(snaps))}
	for _, s := range snaps {
		response.Snapshots = append(response.Snapshots, snapshotResponse{
			Path:        s.Path,
			FrameNumber: s.FrameNumber,
			CapturedAt:  s.CapturedAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// lookup fetches a run and writes the error response when it fails.
func (h *RunHandler) lookup(w http.ResponseWriter, id string) (*store.Run, bool) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return nil, false
	}
	return run, true
}
