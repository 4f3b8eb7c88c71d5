package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Reception/internal/adapters/credential"
	router "github.com/dkeye/Reception/internal/adapters/http"
	"github.com/dkeye/Reception/internal/adapters/rtc"
	sig "github.com/dkeye/Reception/internal/adapters/signal"
	"github.com/dkeye/Reception/internal/app"
	"github.com/dkeye/Reception/internal/app/dashboard"
	"github.com/dkeye/Reception/internal/app/guest"
	"github.com/dkeye/Reception/internal/app/tracks"
	"github.com/dkeye/Reception/internal/config"
	"github.com/dkeye/Reception/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	fetcher := credential.NewHTTPFetcher(cfg.Token.URL, cfg.Token.Timeout)
	transport := rtc.NewTransport(rtc.DefaultWebRTCConfig(cfg.Transport.ICEServers), sig.Options{
		PingPeriod: cfg.PingPeriod,
		ReadLimit:  cfg.ReadLimit,
	})
	sinks := &rtc.SinkFactory{}

	var hub *router.Hub
	dash := dashboard.New(dashboard.Options{
		Rooms:           cfg.RoomIDs(),
		Identity:        cfg.Dashboard.Identity,
		DefaultEndpoint: cfg.Transport.DefaultEndpoint,
		Eligible:        tracks.PrefixMatcher(cfg.Dashboard.EligiblePrefix),
		Features:        cfg.Dashboard.Features,
		Credentials:     fetcher,
		Transport:       transport,
		Devices:         rtc.NewDevices(cfg.Dashboard.Identity),
		Sinks:           sinks,
		OnChange:        func([]dashboard.FeedState) { hub.Notify() },
	})
	hub = router.NewHub(router.Surfaces(dash), cfg.PingPeriod)

	guests := app.NewRegistry(func(room domain.RoomID) *guest.Page {
		return guest.New(guest.Options{
			Room:            room,
			IdentityPrefix:  cfg.Guest.IdentityPrefix,
			DefaultEndpoint: cfg.Transport.DefaultEndpoint,
			Eligible:        tracks.PrefixMatcher(cfg.Guest.EligiblePrefix),
			Features:        cfg.Guest.Features,
			Credentials:     fetcher,
			Transport:       transport,
			Devices:         rtc.NewDevices(domain.GuestIdentity(cfg.Guest.IdentityPrefix, room)),
			Sinks:           sinks,
		})
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Dashboard:   dash,
		Guests:      guests,
		Credentials: fetcher,
		Hub:         hub,
		Limiter:     router.NewControlRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Interval),
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	dash.Start(ctx)

	go func() {
		log.Info().Str("addr", addr).Msg("Reception server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	dash.Close()
	guests.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
