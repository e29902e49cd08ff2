package api

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is anything readiness can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store   Pinger
	redis   *redis.Client
	env     string
	version string
}

// NewHealthHandler builds the health endpoints. rdb may be nil when Redis is not configured.
func NewHealthHandler(store Pinger, rdb *redis.Client, env, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		redis:   rdb,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	storeCtx, storeCancel := context.WithTimeout(ctx, time.Second)
	err := h.store.Ping(storeCtx)
	storeCancel()
	if err != nil {
		deps["store"] = "down"
		status = "error"
	} else {
		deps["store"] = "ok"
	}

	// Bookings fail while Redis is down; everything else keeps working.
	if h.redis != nil {
		redisCtx, redisCancel := context.WithTimeout(ctx, time.Second)
		err = h.redis.Ping(redisCtx).Err()
		redisCancel()
		if err != nil {
			deps["redis"] = "down"
			if status == "ok" {
				status = "degraded"
			}
		} else {
			deps["redis"] = "ok"
		}
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}
