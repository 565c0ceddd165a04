package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"slaphard/apps/server/internal/gateway"
	"slaphard/apps/server/internal/journal"
	"slaphard/apps/server/internal/metrics"
	"slaphard/apps/server/internal/room"
)

func main() {
	log := newLogger()

	store, storeMode, err := room.NewStoreFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("init room store")
	}
	defer store.Close()

	journalService, journalMode, err := journal.NewServiceFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("init journal")
	}
	defer journalService.Close()

	met := metrics.New()
	retrying := journal.WithRetry(journalService, log)
	retrying.OnRetry = met.JournalRetries.Inc
	retrying.OnFailure = met.JournalFailures.Inc

	hub := room.NewHub(store, retrying, met, log)
	gw := gateway.New(hub, met, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", met.Handler())

	addr := ":" + envOr("PORT", "8080")
	server := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("addr", addr).
			Str("store", storeMode).
			Str("journal", journalMode).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil && l != zerolog.NoLevel {
		level = l
	}
	var out = zerolog.New(os.Stdout)
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return out.Level(level).With().Timestamp().Logger()
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
