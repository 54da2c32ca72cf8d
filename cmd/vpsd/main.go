package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"vpsd/internal/bot"
	"vpsd/internal/engine"
	"vpsd/internal/handlers"
	"vpsd/internal/hypervisor"
	"vpsd/internal/integrations/discord"
	"vpsd/internal/middleware"
	"vpsd/internal/monitor"
	"vpsd/internal/registry"
	"vpsd/internal/utils"
)

func main() {
	addr := flag.String("addr", ":5000", "HTTP listen address")
	registryPath := flag.String("registry", "config.json", "Path to the registry document")
	logPath := flag.String("log", "", "Log file path (empty = stderr)")
	driverTimeout := flag.Duration("driver-timeout", 90*time.Second, "Hypervisor command timeout")
	monitorInterval := flag.Duration("monitor-interval", 30*time.Second, "Abuse monitor polling interval")
	tlsCert := flag.String("tls-cert", os.Getenv("VPSD_TLS_CERT"), "TLS certificate path")
	tlsKey := flag.String("tls-key", os.Getenv("VPSD_TLS_KEY"), "TLS key path")
	flag.Parse()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := utils.NewLogger(*logPath)
	defer logger.Close()

	reg := registry.New(afero.NewOsFs(), *registryPath)
	if err := reg.Load(); err != nil {
		log.Fatalf("Failed to load registry: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(promRegistry)

	driver := hypervisor.NewLibvirt(*driverTimeout)
	eng := engine.New(reg, driver, logger,
		engine.WithDriverTimeout(*driverTimeout),
		engine.WithMetrics(metrics),
	)

	hub := middleware.NewHub(logger)
	go hub.Run()
	eng.AddNotifier(hub)

	settings := reg.Settings()
	if settings.WebhookURL != "" {
		eng.AddNotifier(&discord.WebhookNotifier{URL: settings.WebhookURL, Log: logger})
	}
	var discordBot *bot.Discord
	if settings.DiscordToken != "" {
		disp := bot.NewDispatcher(eng, logger)
		var err error
		discordBot, err = bot.NewDiscord(settings.DiscordToken, disp, settings.NotificationChannel, logger)
		if err != nil {
			log.Fatalf("Failed to create Discord session: %v", err)
		}
		if err := discordBot.Start(); err != nil {
			log.Fatalf("Failed to connect to Discord: %v", err)
		}
		eng.AddNotifier(discordBot)
		logger.Write("Discord transport connected")
	} else {
		logger.Write("No Discord token configured; running HTTP-only")
	}

	mon := monitor.New(eng, reg, monitor.NewHostSampler(reg), logger, *monitorInterval)
	mon.Start()

	authService := middleware.NewAuthService()
	rateLimiter := middleware.NewRateLimiter(rate.Every(time.Minute/100), 10)

	router := handlers.NewRouter(handlers.RouterConfig{
		Engine:      eng,
		Registry:    reg,
		Auth:        authService,
		Hub:         hub,
		RateLimiter: rateLimiter,
		Log:         logger,
		Gatherer:    promRegistry,
	})

	srv := &http.Server{
		Addr:           *addr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Starting server on %s", *addr)
		var err error
		if *tlsCert != "" && *tlsKey != "" {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	mon.Stop()
	rateLimiter.Stop()
	if discordBot != nil {
		if err := discordBot.Close(); err != nil {
			logger.Writef("Discord shutdown error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}
