package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/api/response"
	"github.com/safenet/safenet/internal/monitor"
)

// TrackHandler handles subject tracking lifecycle and location fixes.
type TrackHandler struct {
	monitor *monitor.Monitor
}

// NewTrackHandler creates a new TrackHandler.
func NewTrackHandler(m *monitor.Monitor) *TrackHandler {
	return &TrackHandler{monitor: m}
}

// StartTracking handles POST /v1/track/{subjectId}.
func (h *TrackHandler) StartTracking(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectId")
	if err := h.monitor.Track(subjectID); err != nil {
		if errors.Is(err, monitor.ErrAlreadyTracked) {
			response.Conflict(w, r, "subject is already tracked")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	response.Created(w, r, "/v1/track/"+subjectID, models.TrackStatus{SubjectID: subjectID, Tracked: true})
}

// StopTracking handles DELETE /v1/track/{subjectId}.
func (h *TrackHandler) StopTracking(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectId")
	if err := h.monitor.Untrack(subjectID); err != nil {
		if errors.Is(err, monitor.ErrNotTracked) {
			response.NotFound(w, r, "subject is not tracked")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// SubmitFix handles POST /v1/track/{subjectId}/fixes.
func (h *TrackHandler) SubmitFix(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectId")

	var input models.FixInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := input.Location.Geo().Validate(); err != nil {
		response.BadRequest(w, r, "invalid coordinate", nil)
		return
	}

	ts := time.Now()
	if input.Timestamp != nil {
		ts = input.Timestamp.Time()
	}

	err := h.monitor.Offer(monitor.Fix{
		SubjectID:      subjectID,
		Point:          input.Location.Geo(),
		AccuracyMeters: input.AccuracyMeters,
		Timestamp:      ts,
		Sequence:       input.Sequence,
	})
	if err != nil {
		if errors.Is(err, monitor.ErrNotTracked) {
			response.NotFound(w, r, "subject is not tracked")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	response.Accepted(w, r, "", models.TrackStatus{SubjectID: subjectID, Tracked: true})
}
