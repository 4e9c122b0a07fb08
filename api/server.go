package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/DeafMist/fire-radar/internal/config"
	"github.com/DeafMist/fire-radar/internal/elasticsearch"
	"github.com/DeafMist/fire-radar/internal/query"
	"github.com/DeafMist/fire-radar/internal/refresh"
	"github.com/DeafMist/fire-radar/internal/store"
	"github.com/DeafMist/fire-radar/internal/subscription"
)

const maxSubscribeBody = 4 << 10

type cycleReporter interface {
	LastReport() *refresh.CycleReport
}

type archiveSearcher interface {
	SearchArchive(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	Health(ctx context.Context) (string, error)
}

type server struct {
	log     *slog.Logger
	cfg     *config.API
	cache   *store.Store
	loop    cycleReporter
	subs    subscription.Store
	ws      http.HandlerFunc
	archive archiveSearcher // nil when the archive endpoint is disabled
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status       string                `json:"status"`
	Generation   uint64                `json:"generation"`
	Records      int                   `json:"records"`
	LastRefresh  *time.Time            `json:"lastRefresh"`
	SourceErrors []refresh.SourceError `json:"sourceErrors,omitempty"`
	Archive      string                `json:"archive,omitempty"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.ws)

	r.Route("/api", func(r chi.Router) {
		r.Get("/news", s.handleNews)
		r.Post("/subscribe", s.handleSubscribe)
		if s.archive != nil {
			r.Get("/archive", s.handleArchive)
		}
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Records: len(s.cache.Records()),
	}
	if gen := s.cache.Last(); gen != nil {
		resp.Generation = gen.Version
	}
	if report := s.loop.LastReport(); report != nil {
		started := report.StartedAt.UTC()
		resp.LastRefresh = &started
		resp.SourceErrors = report.Errors
	}
	if s.archive != nil {
		resp.Archive = s.archiveHealth(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

// archiveHealth reports the archive index status; it never changes the overall status.
func (s *server) archiveHealth(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status, err := s.archive.Health(ctx)
	if err != nil {
		s.log.Warn("archive health", slog.Any("err", err))
		return "unavailable"
	}
	return status
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records := query.News(s.cache, query.Params{
		Search:   q.Get("search"),
		Category: q.Get("category"),
	})
	writeJSON(w, http.StatusOK, records)
}

func (s *server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSubscribeBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid email address"})
		return
	}

	_, err := s.subs.Add(r.Context(), body.Email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, messageResponse{Message: "Subscribed successfully"})
	case errors.Is(err, subscription.ErrInvalidEmail):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid email address"})
	case errors.Is(err, subscription.ErrAlreadySubscribed):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Already subscribed"})
	default:
		s.log.Error("store subscriber", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

func (s *server) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:    strings.TrimSpace(q.Get("q")),
		Category: strings.TrimSpace(q.Get("category")),
		Location: strings.TrimSpace(q.Get("location")),
		Source:   strings.TrimSpace(q.Get("source")),
		From:     clampInt(q.Get("from"), 0, 10_000),
		Size:     clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:     strings.TrimSpace(q.Get("sort")),
		Start:    parseTime(q.Get("start")),
		End:      parseTime(q.Get("end")),
	}

	result, err := s.archive.SearchArchive(ctx, params)
	if err != nil {
		s.log.Warn("archive search", slog.Any("err", err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Archive unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// originChecker mirrors the CORS allow-list for websocket upgrades.
func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	if ts, err := time.Parse(time.DateOnly, raw); err == nil {
		return &ts
	}
	return nil
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
