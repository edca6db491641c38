package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/ledgerline/api/internal/audit"
	"github.com/ledgerline/api/internal/config"
	"github.com/ledgerline/api/internal/handlers"
	"github.com/ledgerline/api/internal/httpx"
	"github.com/ledgerline/api/internal/importer"
	"github.com/ledgerline/api/internal/middleware"
	"github.com/ledgerline/api/internal/notify"
	"github.com/ledgerline/api/internal/secure"
	"github.com/ledgerline/api/internal/store"
)

func NewRouter(cfg config.Config, pool *pgxpool.Pool, logger *slog.Logger) (http.Handler, error) {
	specPath := filepath.Join("openapi.yaml")
	if _, err := os.Stat(specPath); err != nil {
		return nil, fmt.Errorf("openapi spec not found at %s: %w", specPath, err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	keySvc, err := secure.NewEnvKeyService()
	if err != nil {
		return nil, fmt.Errorf("load tenant keys: %w", err)
	}

	st := store.New(pool)
	sink := notify.LogSink{Log: logger}
	imp := importer.New(importer.Deps{
		DB:   pool,
		Refs: st,
		Auth: secure.RoleAuthorizer{Caller: func(ctx context.Context) (uuid.UUID, string, bool) {
			actor, ok := middleware.ActorFromContext(ctx)
			return actor.TenantID, actor.Role, ok
		}},
		Keys:       keySvc,
		Enc:        secure.AEADEncryptor{},
		Audit:      audit.NewRecorder(pool, logger),
		Cache:      sink,
		Events:     sink,
		Aggregates: sink,
		Log:        logger,
	}, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.Env))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.LimitBodyBytesWithOverrides(cfg.APIMaxBodyBytes, []middleware.BodyLimitOverride{
		{PathPrefix: "/imports", MaxBytes: cfg.ImportMaxFileBytes},
	}))

	api := chi.NewRouter()
	api.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			requestID := w.Header().Get("X-Request-Id")
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Error:     httpx.ErrorBody{Code: "validation_error", Message: message},
				RequestID: requestID,
			})
		},
	}))

	h := handlers.NewServer(cfg, imp, logger)

	authMW := middleware.AuthMiddleware{Principals: st}
	importLimiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMin, time.Minute)

	api.Group(func(public chi.Router) {
		public.Get("/health", h.GetHealth)
	})

	api.Group(func(protected chi.Router) {
		protected.Use(authMW.RequireAuth)
		protected.With(
			importLimiter.Middleware("Too many import requests"),
		).Post("/imports/{entity}", h.CreateImport)
		protected.Get("/imports/failed/{name}", h.DownloadFailedRows)
	})

	r.Mount("/api", api)
	return r, nil
}
