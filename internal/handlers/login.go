package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vpsd/internal/middleware"
	"vpsd/internal/registry"
	"vpsd/internal/utils"
)

// LoginHandler exchanges the shared API credential for a bearer token
// bound to a principal identifier. Role enforcement happens per operation
// in the engine, so any principal may log in; an unknown one simply cannot
// do anything.
type LoginHandler struct {
	reg  *registry.Registry
	auth *middleware.AuthService
	log  *utils.Logger
}

// NewLoginHandler creates the login endpoint.
func NewLoginHandler(reg *registry.Registry, auth *middleware.AuthService, log *utils.Logger) *LoginHandler {
	return &LoginHandler{reg: reg, auth: auth, log: log}
}

type loginRequest struct {
	Principal  string `json:"principal" binding:"required"`
	Credential string `json:"credential" binding:"required"`
}

// Login validates the credential and issues a token.
func (h *LoginHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal and credential are required"})
		return
	}

	hash := h.reg.Settings().APICredential
	if hash == "" || !h.auth.CheckCredential(req.Credential, hash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credential"})
		return
	}

	token, err := h.auth.GenerateToken(req.Principal)
	if err != nil {
		h.log.Writef("token generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
