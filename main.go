package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource"
	_ "github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource/mssql"    // register sqlserver adapter
	_ "github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource/postgres" // register postgres adapter
	"github.com/dbcanvas/dbcanvas-engine/pkg/apperrors"
	"github.com/dbcanvas/dbcanvas-engine/pkg/config"
	"github.com/dbcanvas/dbcanvas-engine/pkg/database"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
	"github.com/dbcanvas/dbcanvas-engine/pkg/repositories"
	"github.com/dbcanvas/dbcanvas-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("database", cfg.Database.Database),
		zap.Int("default_row_limit", cfg.Graph.DefaultRowLimit))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to engine store", zap.Error(err))
	}
	defer db.Close()

	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrationDB.Close()

	var groups *services.ProductGroups
	if cfg.Graph.ProductGroupsPath != "" {
		groups, err = services.LoadProductGroups(cfg.Graph.ProductGroupsPath)
		if err != nil {
			logger.Fatal("Failed to load product groups", zap.Error(err))
		}
	}

	repo := repositories.NewGraphRepository(db)
	engine := services.NewInferenceEngine(logger)
	graphSvc := services.NewGraphService(repo, engine, groups, cfg.Graph, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": cfg.Version,
		})
	})
	mux.HandleFunc("/v1/adapters", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(datasource.RegisteredAdapters())
	})
	mux.HandleFunc("/v1/cache/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		datasourceID := r.URL.Query().Get("datasource_id")
		if datasourceID == "" {
			http.Error(w, "datasource_id is required", http.StatusBadRequest)
			return
		}
		var mode *models.GraphMode
		if m := r.URL.Query().Get("mode"); m != "" {
			gm := models.GraphMode(m)
			mode = &gm
		}
		if err := graphSvc.ClearCache(r.Context(), datasourceID, mode); err != nil {
			if errors.Is(err, apperrors.ErrInvalidMode) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "failed to clear cache", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting dbcanvas-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
