// Package handler provides HTTP handlers for the SafeNet API.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/safenet/safenet/internal/alert"
	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/api/response"
	"github.com/safenet/safenet/internal/risk"
)

// DependencyCheck probes one backing dependency for readiness.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    []DependencyCheck
	alerts    *alert.Service
	riskModel *risk.Model
}

// NewOpsHandler creates a new OpsHandler. Alerts and riskModel are optional;
// when nil the corresponding status sections are omitted.
func NewOpsHandler(version, buildTime string, checks []DependencyCheck, alerts *alert.Service, riskModel *risk.Model) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		checks:    checks,
		alerts:    alerts,
		riskModel: riskModel,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Every backing
// dependency must answer within the probe timeout.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := models.HealthStatusOK
	httpStatus := http.StatusOK
	details := make(map[string]interface{})

	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			status = models.HealthStatusFail
			httpStatus = http.StatusServiceUnavailable
			details[c.Name] = err.Error()
		}
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}
	if len(details) > 0 {
		health.Details = details
	}
	response.JSON(w, r, httpStatus, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and channel status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	for _, c := range h.checks {
		sub := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err := c.Check(ctx); err != nil {
			sub.Status = models.HealthStatusFail
			detail := err.Error()
			sub.Detail = &detail
			status.Status = models.HealthStatusDegraded
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.riskModel != nil {
		detail := "buckets: " + strconv.Itoa(h.riskModel.BucketCount())
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "risk-model",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	if h.alerts != nil {
		for _, ch := range h.alerts.ChannelHealth() {
			cs := models.ChannelStatus{Channel: ch.Name, Status: models.HealthStatusOK}
			if !ch.Healthy {
				cs.Status = models.HealthStatusFail
				status.Status = models.HealthStatusDegraded
			}
			if ch.Detail != "" {
				detail := ch.Detail
				cs.Detail = &detail
			}
			status.Channels = append(status.Channels, cs)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}
