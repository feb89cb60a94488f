package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger checks connectivity to the shared store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer provides HTTP health and instance query endpoints for the daemon.
type HealthServer struct {
	pinger Pinger
	orch   *Orchestrator
	addr   string
	logger *zap.Logger
	server *http.Server
}

// NewHealthServer creates a new health server listening on addr.
func NewHealthServer(pinger Pinger, orch *Orchestrator, addr string, logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthServer{
		pinger: pinger,
		orch:   orch,
		addr:   addr,
		logger: logger.With(zap.String("component", "health")),
	}
}

// Handler returns the server's routes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)
	mux.HandleFunc("GET /v1/instances/{id}", h.instanceHandler)
	return mux
}

// Start binds the listen address and serves in the background.
// Returns an error if the address cannot be bound.
func (h *HealthServer) Start() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}

	h.server = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health_server_failed", zap.Error(err))
		}
	}()

	h.logger.Info("health_server_started", zap.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown gracefully shuts down the server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy"}
	if h.orch != nil {
		response.DroppedEvents = h.orch.DroppedEvents()
	}

	if err := h.pinger.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response.Redis = "connected"
	writeJSON(w, http.StatusOK, response)
}

// instanceHandler handles GET /v1/instances/{id}, answering late status
// queries from the orchestrator's table.
func (h *HealthServer) instanceHandler(w http.ResponseWriter, r *http.Request) {
	inst, err := h.orch.Get(r.PathValue("id"))
	if errors.Is(err, ErrInstanceNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status        string `json:"status"`
	Redis         string `json:"redis,omitempty"`
	DroppedEvents int64  `json:"dropped_events"`
	Error         string `json:"error,omitempty"`
}
