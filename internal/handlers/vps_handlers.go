// Package handlers exposes the lifecycle engine over an HTTP JSON API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vpsd/internal/engine"
	"vpsd/internal/middleware"
	"vpsd/internal/models"
	"vpsd/internal/policy"
	"vpsd/internal/registry"
	"vpsd/internal/utils"
)

// VPSHandlers serves the /vps and /set-cap endpoints.
type VPSHandlers struct {
	eng *engine.Engine
	log *utils.Logger
}

// NewVPSHandlers creates the handler set.
func NewVPSHandlers(eng *engine.Engine, log *utils.Logger) *VPSHandlers {
	return &VPSHandlers{eng: eng, log: log}
}

// ListVPS returns all records keyed by identifier.
func (h *VPSHandlers) ListVPS(c *gin.Context) {
	out := make(map[string]*models.VPS)
	for _, v := range h.eng.List() {
		out[v.ID] = v
	}
	c.JSON(http.StatusOK, out)
}

// GetVPS returns a single record or the canonical not-found body.
func (h *VPSHandlers) GetVPS(c *gin.Context) {
	v, err := h.eng.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "VPS not found"})
		return
	}
	c.JSON(http.StatusOK, v)
}

type createRequest struct {
	Memory   int    `json:"memory" binding:"required,gt=0"`
	Cores    int    `json:"cores" binding:"required,gt=0"`
	Customer string `json:"customer" binding:"required,customer"`
}

// CreateVPS provisions a new instance for the authenticated principal.
func (h *VPSHandlers) CreateVPS(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "memory, cores, and customer are required"})
		return
	}
	v, err := h.eng.Create(c.Request.Context(), middleware.PrincipalFrom(c), req.Memory, req.Cores, req.Customer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

type suspendRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// SuspendVPS pauses an instance.
func (h *VPSHandlers) SuspendVPS(c *gin.Context) {
	var req suspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	v, err := h.eng.Suspend(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// ResumeVPS unpauses an instance.
func (h *VPSHandlers) ResumeVPS(c *gin.Context) {
	v, err := h.eng.Resume(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type setCapRequest struct {
	RAM     *float64 `json:"ram"`
	CPU     *float64 `json:"cpu"`
	Storage *float64 `json:"storage"`
}

// SetCap overwrites the global resource ceilings. Unlike the original
// design this endpoint sits behind API authentication; the unauthenticated
// variant was a hole, not a feature.
func (h *VPSHandlers) SetCap(c *gin.Context) {
	var req setCapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	if err := h.eng.SetCaps(middleware.PrincipalFrom(c), req.RAM, req.CPU, req.Storage); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Resource caps updated."})
}

// writeError maps engine errors onto HTTP responses. Driver and persist
// diagnostics go to the log, not the wire.
func (h *VPSHandlers) writeError(c *gin.Context, err error) {
	var capErr *policy.CapacityError
	var persistErr *engine.PersistError
	switch {
	case errors.Is(err, policy.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "VPS not found"})
	case errors.Is(err, policy.ErrUnconfigured):
		c.JSON(http.StatusConflict, gin.H{"error": "Storage ratio is not configured"})
	case errors.As(err, &capErr):
		c.JSON(http.StatusConflict, gin.H{"error": capErr.Error()})
	case errors.Is(err, engine.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &persistErr):
		h.log.Writef("persist error on %s: %v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error; operator has been notified"})
	default:
		h.log.Writef("hypervisor error on %s: %v", c.FullPath(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Hypervisor operation failed"})
	}
}
