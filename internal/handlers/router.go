package handlers

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vpsd/internal/engine"
	"vpsd/internal/middleware"
	"vpsd/internal/registry"
	"vpsd/internal/utils"
	"vpsd/internal/version"
)

var customerRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

// RegisterValidators installs custom binding validators. Safe to call more
// than once.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("customer", func(fl validator.FieldLevel) bool {
			return customerRe.MatchString(fl.Field().String())
		})
	}
}

// RouterConfig bundles the collaborators the HTTP surface needs.
type RouterConfig struct {
	Engine      *engine.Engine
	Registry    *registry.Registry
	Auth        *middleware.AuthService
	Hub         *middleware.Hub
	RateLimiter *middleware.RateLimiter
	Log         *utils.Logger
	Gatherer    prometheus.Gatherer
}

// NewRouter assembles the gin engine with all routes and middleware.
func NewRouter(cfg RouterConfig) *gin.Engine {
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}

	h := NewVPSHandlers(cfg.Engine, cfg.Log)
	login := NewLoginHandler(cfg.Registry, cfg.Auth, cfg.Log)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.String()})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	if cfg.Hub != nil {
		r.GET("/ws", cfg.Hub.HandleWebSocket())
	}

	r.POST("/login", login.Login)
	r.GET("/vps", h.ListVPS)
	r.GET("/vps/:id", h.GetVPS)

	authed := r.Group("/")
	authed.Use(cfg.Auth.RequireAPIAuth())
	authed.POST("/vps", h.CreateVPS)
	authed.POST("/vps/:id/suspend", h.SuspendVPS)
	authed.POST("/vps/:id/resume", h.ResumeVPS)
	authed.POST("/set-cap", h.SetCap)

	return r
}
