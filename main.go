package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"puzzle-pals-server/api"
	"puzzle-pals-server/auth"
	"puzzle-pals-server/config"
	"puzzle-pals-server/leaderboard"
	"puzzle-pals-server/loghandler"
	"puzzle-pals-server/report"
	"puzzle-pals-server/results"
	"puzzle-pals-server/social"
	"puzzle-pals-server/store"
	"puzzle-pals-server/users"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found; using environment variables.")
	}

	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, slog.LevelInfo)))
	log := slog.Default().With("tag", "main")

	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("store init failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	log.Info("store ready", "backend", cfg.StoreBackend)

	verifier, err := auth.NewVerifier(cfg.FirebaseProjectID, cfg.TestIDToken)
	if err != nil {
		log.Error("auth init failed", "error", err)
		os.Exit(1)
	}
	if cfg.TestIDToken != "" {
		log.Warn("auth test-token bypass is enabled")
	}

	tables := cfg.Tables()
	userSvc := users.NewService(st, tables)
	graph := social.NewService(st, tables)
	resultSvc := results.NewService(st, tables)
	boards := leaderboard.NewBuilder(st, tables, graph)
	reports := report.NewService(st, tables)

	handler := api.NewHandler(cfg, verifier, userSvc, graph, resultSvc, boards, reports)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutMS)*time.Millisecond + 5*time.Second,
	}
	log.Info("Puzzle Pals server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// openStore selects the store backend from configuration.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "dynamo":
		return store.NewDynamo(ctx, store.DynamoOptions{
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.AWSEndpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
		})
	case "postgres":
		return store.NewPostgres(ctx, cfg.DatabaseURL, cfg.Tables().All())
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
