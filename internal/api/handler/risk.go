package handler

import (
	"net/http"
	"time"

	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/api/response"
	"github.com/safenet/safenet/internal/risk"
)

// RiskHandler serves point risk queries.
type RiskHandler struct {
	model *risk.Model
}

// NewRiskHandler creates a new RiskHandler.
func NewRiskHandler(model *risk.Model) *RiskHandler {
	return &RiskHandler{model: model}
}

// GetScore handles GET /v1/risk/score.
func (h *RiskHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	p, err := parsePoint(r, "lat", "lng")
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, r, "at must be an RFC 3339 timestamp", nil)
			return
		}
		at = parsed
	}

	score, err := h.model.Score(p, at)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.RiskScore{
		Score:   score.Value,
		Level:   string(score.Level),
		DayPart: string(score.Part),
		Samples: score.Samples,
	})
}
