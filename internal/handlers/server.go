package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ledgerline/api/internal/config"
	"github.com/ledgerline/api/internal/httpx"
	"github.com/ledgerline/api/internal/importer"
)

type Server struct {
	Cfg      config.Config
	Importer *importer.Importer
	Log      *slog.Logger
}

func NewServer(cfg config.Config, imp *importer.Importer, log *slog.Logger) *Server {
	return &Server{Cfg: cfg, Importer: imp, Log: log}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
