package controller

import (
	"context"
	"strconv"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

const healthTimeout = 3 * time.Second

// HealthChecker reports the health of the backend API.
type HealthChecker interface {
	Health(ctx context.Context) (*dto.HealthResponse, error)
}

// SessionCounter reports how many browser sessions are held in memory.
type SessionCounter interface {
	Count() int
}

type IOpsController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type opsController struct {
	backend  HealthChecker
	sessions SessionCounter
	metrics  fiber.Handler
	version  string
}

func NewOpsController(backend HealthChecker, sessions SessionCounter, metrics fiber.Handler, version string) IOpsController {
	return &opsController{backend: backend, sessions: sessions, metrics: metrics, version: version}
}

func (c *opsController) RegisterRoutes(r fiber.Router) {
	r.Get("/healthz", c.Health)
	if c.metrics != nil {
		r.Get("/metrics", c.metrics)
	}
}

// Health answers 200 while the process is up. A failing backend degrades
// the status without failing the probe.
func (c *opsController) Health(ctx *fiber.Ctx) error {
	res := dto.HealthResponse{
		Status:    "healthy",
		Version:   c.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  map[string]string{"web": "healthy"},
	}

	callCtx, cancel := context.WithTimeout(ctx.UserContext(), healthTimeout)
	defer cancel()
	backend, err := c.backend.Health(callCtx)
	switch {
	case err != nil:
		res.Status = "degraded"
		res.Services["backend"] = "unreachable"
	default:
		res.Services["backend"] = backend.Status
		if backend.Status != "healthy" {
			res.Status = "degraded"
		}
	}

	res.Services["sessions"] = strconv.Itoa(c.sessions.Count())
	return ctx.JSON(serverutils.SuccessResponse("Success check health", res))
}
