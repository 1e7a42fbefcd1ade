package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cityweather/internal/api"
	"cityweather/internal/app"
	"cityweather/internal/models"
)

type SearchRequest struct {
	CityName string `json:"cityName"`
}

// Pinger is a dependency whose health is reported by /health
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	IconBaseURL string
	Logger      *slog.Logger
	// Checks are pinged by /health, keyed by the name reported
	Checks map[string]Pinger
}

// Server represents the HTTP server
type Server struct {
	controller  *app.Controller
	iconBaseURL string
	checks      map[string]Pinger
	logger      *slog.Logger
	router      *mux.Router
	httpServer  *http.Server
}

// WeatherView is a record as displayed in the selected unit
type WeatherView struct {
	*models.WeatherRecord
	DisplayUnit        api.Unit `json:"displayUnit"`
	DisplayTemperature int      `json:"displayTemperature"`
	DisplayMinTemp     int      `json:"displayMinTemp"`
	DisplayMaxTemp     int      `json:"displayMaxTemp"`
	TemperatureText    string   `json:"temperatureText"`
	WindSpeedText      string   `json:"windSpeedText"`
	IconURL            string   `json:"iconUrl"`
}

type StateView struct {
	Current *WeatherView          `json:"current"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	Unit    api.Unit              `json:"unit"`
	History []models.HistoryEntry `json:"history"`
	CanUndo bool                  `json:"canUndo"`
}

// NewServer creates a new HTTP server
func NewServer(controller *app.Controller, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IconBaseURL == "" {
		opts.IconBaseURL = api.DefaultIconBaseURL
	}

	s := &Server{
		controller:  controller,
		iconBaseURL: opts.IconBaseURL,
		checks:      opts.Checks,
		logger:      opts.Logger,
		router:      mux.NewRouter(),
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r := s.router.PathPrefix("/api").Subrouter()
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/weather", s.handleWeather).Methods(http.MethodGet)
	r.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/unit/toggle", s.handleToggleUnit).Methods(http.MethodPost)
	r.HandleFunc("/error/clear", s.handleClearError).Methods(http.MethodPost)

	r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/history", s.handleClearHistory).Methods(http.MethodDelete)
	r.HandleFunc("/history/undo", s.handleUndo).Methods(http.MethodPost)
	r.HandleFunc("/history/{id}", s.handleHistoryEntry).Methods(http.MethodGet)
	r.HandleFunc("/history/{id}", s.handleRemoveHistory).Methods(http.MethodDelete)
	r.HandleFunc("/history/{id}/select", s.handleSelectHistory).Methods(http.MethodPost)

	s.router.Use(loggingMiddleware(s.logger))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	for name, check := range s.checks {
		if err := check.Ping(r.Context()); err != nil {
			health[name] = "unhealthy"
			health["status"] = "degraded"
			s.logger.Error("Health check failed", "dependency", name, "error", err)
			continue
		}
		health[name] = "healthy"
	}

	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stateView())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	record, err := s.controller.Search(r.Context(), req.CityName)
	s.writeLookup(w, record, err)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	record, err := s.controller.Search(r.Context(), r.URL.Query().Get("city"))
	s.writeLookup(w, record, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	record, err := s.controller.Refresh(r.Context())
	s.writeLookup(w, record, err)
}

func (s *Server) handleToggleUnit(w http.ResponseWriter, r *http.Request) {
	s.controller.ToggleUnit()
	writeJSON(w, http.StatusOK, s.stateView())
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	s.controller.ClearError()
	writeJSON(w, http.StatusOK, s.stateView())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.controller.History()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"history": entries,
	})
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.controller.HistoryEntry(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, app.ErrHistoryEntryNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleSelectHistory(w http.ResponseWriter, r *http.Request) {
	record, err := s.controller.SelectFromHistory(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, app.ErrHistoryEntryNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeLookup(w, record, err)
}

func (s *Server) handleRemoveHistory(w http.ResponseWriter, r *http.Request) {
	if !s.controller.RemoveHistoryItem(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, app.ErrHistoryEntryNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.stateView())
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	if !s.controller.UndoRemove() {
		writeError(w, http.StatusConflict, "Nothing to undo")
		return
	}
	writeJSON(w, http.StatusOK, s.stateView())
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.controller.ClearHistory()
	writeJSON(w, http.StatusOK, s.stateView())
}

// writeLookup answers a search-like command. A nil record with no error
// means there was nothing to look up.
func (s *Server) writeLookup(w http.ResponseWriter, record *models.WeatherRecord, err error) {
	if err != nil {
		status := http.StatusBadGateway
		if api.KindOf(err) == api.KindValidation {
			status = http.StatusBadRequest
		}
		writeError(w, status, api.Classify(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"weather": s.weatherView(record, s.controller.Unit()),
		"state":   s.stateView(),
	})
}

func (s *Server) stateView() StateView {
	state := s.controller.State()
	return StateView{
		Current: s.weatherView(state.Current, state.Unit),
		Loading: state.Loading,
		Error:   state.Error,
		Unit:    state.Unit,
		History: state.History,
		CanUndo: state.CanUndo,
	}
}

func (s *Server) weatherView(record *models.WeatherRecord, unit api.Unit) *WeatherView {
	if record == nil {
		return nil
	}
	temp := app.DisplayTemperature(record, record.Temperature, unit)
	return &WeatherView{
		WeatherRecord:      record,
		DisplayUnit:        unit,
		DisplayTemperature: temp,
		DisplayMinTemp:     app.DisplayTemperature(record, record.MinTemp, unit),
		DisplayMaxTemp:     app.DisplayTemperature(record, record.MaxTemp, unit),
		TemperatureText:    api.FormatTemperature(temp, unit),
		WindSpeedText:      api.FormatWindSpeed(record.WindSpeed, record.Units),
		IconURL:            api.IconURL(s.iconBaseURL, record.Icon),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
