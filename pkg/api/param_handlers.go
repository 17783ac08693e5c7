package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/codelets/pkg/codelet"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/services"
)

// ParamHandler holds dependencies for the parameter endpoints.
type ParamHandler struct {
	params ParamStore
	logger customlog.Logger
}

// NewParamHandler creates a new handler for parameter endpoints.
func NewParamHandler(params ParamStore, logger customlog.Logger) *ParamHandler {
	if params == nil {
		panic("ParamStore cannot be nil in NewParamHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewParamHandler")
	}
	return &ParamHandler{
		params: params,
		logger: logger,
	}
}

// RegisterParamRoutes registers the parameter endpoints under router.
func RegisterParamRoutes(router fiber.Router, params ParamStore, logger customlog.Logger) {
	h := NewParamHandler(params, logger)

	router.Get("/nodes/:node/params", h.handleGetParams)
	router.Put("/nodes/:node/params", h.handleUpdateParams)
	router.Get("/config/app", h.handleGetAppConfig)

	logger.Infof("Registered parameter API endpoints under /api/v1")
}

func (h *ParamHandler) handleGetParams(c *fiber.Ctx) error {
	node := c.Params("node")
	value, err := h.params.Get(node)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(value)
}

// handleUpdateParams accepts a partial YAML or JSON document; fields left
// out keep their value.
func (h *ParamHandler) handleUpdateParams(c *fiber.Ctx) error {
	node := c.Params("node")

	body := c.Body()
	if len(body) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body cannot be empty.",
		})
	}

	value, err := h.params.Update(node, body)
	if err != nil {
		h.logger.Warnf("Failed to update parameters of %s: %v", node, err)
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": fmt.Sprintf("Parameter update failed: %v", err),
		})
	}
	return c.JSON(value)
}

func (h *ParamHandler) handleGetAppConfig(c *fiber.Ctx) error {
	yamlData, err := h.params.ConfigYAML()
	if err != nil {
		h.logger.Errorf("Failed to render application config: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, codelet.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoParams):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
