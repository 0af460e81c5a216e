package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/campuslink/moderation/internal/comments"
	"github.com/campuslink/moderation/internal/config"
	"github.com/campuslink/moderation/internal/dataloader"
	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/httpapi"
	"github.com/campuslink/moderation/internal/identity"
	"github.com/campuslink/moderation/internal/logger"
	"github.com/campuslink/moderation/internal/notify"
	"github.com/campuslink/moderation/internal/pipeline"
	"github.com/campuslink/moderation/internal/punish"
	"github.com/campuslink/moderation/internal/ratelimit"
	"github.com/campuslink/moderation/internal/storage"
	"github.com/campuslink/moderation/internal/storage/inmemory"
	"github.com/campuslink/moderation/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	storageType := flag.String("storage", "in-memory", "Storage type (in-memory or postgres)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFile)

	var store storage.Storage
	logger.L().Info("starting server", "storage", *storageType, "port", cfg.Port)
	if *storageType == "postgres" {
		if cfg.DatabaseURL == "" {
			log.Fatal("DATABASE_URL must be set for postgres storage")
		}
		store, err = postgres.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
	} else {
		mem := inmemory.New()
		fillWithMockData(mem)
		store = mem
	}

	var gateOpts []punish.Option
	if cfg.GateFailClosed {
		gateOpts = append(gateOpts, punish.WithFailClosed())
	}
	gate := punish.NewGate(store, gateOpts...)
	limiter := ratelimit.NewPool(cfg.CommentCooldown.Std(), cfg.RateLimitEntries)
	observer := notify.NewObserver()
	engine := notify.NewEngine(store, observer)

	handlers := httpapi.NewHandlers(
		store,
		pipeline.New(store, gate, limiter, engine),
		comments.NewReader(store),
		punish.NewAdmin(store),
		httpapi.NewStream(observer),
	)

	resolver := identity.NewResolver(cfg.SigningSecret)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(resolver.Middleware)
	router.Use(func(next http.Handler) http.Handler {
		return dataloader.Middleware(store, next)
	})

	router.Route("/api", handlers.Routes)

	logger.L().Info("listening", "addr", ":"+cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}

// fillWithMockData seeds the in-memory store so the API is explorable out
// of the box.
func fillWithMockData(s *inmemory.Store) {
	alice := s.SeedUser(&domain.User{UserName: "Alice", LoginName: "alice"})
	bob := s.SeedUser(&domain.User{UserName: "Bob", LoginName: "bob"})
	s.SeedUser(&domain.User{UserName: "Carol", LoginName: "carol"})

	note := s.SeedNote(&domain.Note{
		UserID:    alice.ID,
		Content:   "Study group in the library at 6?",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	s.SeedBlog(&domain.Blog{
		UserID:  bob.ID,
		Title:   "Surviving finals week",
		Content: "A few things that worked for me last semester.",
	})

	logger.L().Info("mock data seeded", "note", note.ID, "users", 3)
}
