package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"gamewarden/internal/app"
	"gamewarden/internal/domain"
	"gamewarden/internal/runner"
	"gamewarden/internal/server"
	"gamewarden/internal/storage"
	"gamewarden/internal/ws"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

type Server struct {
	Registry   *server.Registry
	Supervisor *runner.Supervisor
	Store      domain.OperationRepository
	HubManager *ws.HubManager

	log *slog.Logger
}

func NewAPIServer(container *app.Container) *Server {
	return &Server{
		Registry:   container.Registry,
		Supervisor: container.Supervisor,
		Store:      container.Store,
		HubManager: container.HubManager,
		log:        container.Logger.With("component", "api"),
	}
}

func (api *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealth)

	mux.HandleFunc("GET /servers", api.handleListServers)
	mux.HandleFunc("POST /servers/{name}/start", api.handleLifecycle(domain.IntentStart))
	mux.HandleFunc("POST /servers/{name}/stop", api.handleLifecycle(domain.IntentStop))
	mux.HandleFunc("POST /servers/{name}/graceful-stop", api.handleLifecycle(domain.IntentGracefulStop))
	mux.HandleFunc("POST /servers/{name}/exec", api.handleExec)
	mux.HandleFunc("GET /servers/{name}/operations", api.handleListOperations)

	mux.HandleFunc("GET /operations/{id}", api.handleGetOperation)

	mux.HandleFunc("GET /ws/servers/{name}/events", api.handleEvents)

	return api.logMiddleware(api.corsMiddleware(mux))
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (api *Server) Start(ctx context.Context, listenAddr string) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		api.log.Info("api listening", "addr", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// graceful stops can take a while; let them finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (api *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"servers": api.Registry.Len(),
	})
}

func (api *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Supervisor.Servers())
}

func (api *Server) handleLifecycle(intent domain.Intent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := api.Supervisor.Do(r.Context(), domain.LifecycleRequest{
			Server: r.PathValue("name"),
			Intent: intent,
		})
		api.writeResult(w, res, err)
	}
}

type execRequest struct {
	Command string `json:"command"`
}

func (api *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10)).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	res, err := api.Supervisor.Exec(r.Context(), r.PathValue("name"), req.Command)
	api.writeResult(w, res, err)
}

func (api *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := api.Registry.Lookup(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	limit := storage.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	ops, err := api.Store.ListOperations(name, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

func (api *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	op, err := api.Store.GetOperation(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if op == nil {
		http.Error(w, "Operation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (api *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := api.Registry.Lookup(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	api.HubManager.GetHub(name).ServeWs(w, r)
}

func (api *Server) writeResult(w http.ResponseWriter, res domain.Result, err error) {
	writeJSON(w, statusCode(res, err), res)
}

// statusCode maps an operation outcome to its HTTP status.
func statusCode(res domain.Result, err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrUnknownServer):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrEmptyCommand), errors.Is(err, runner.ErrUnsupportedIntent):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOperationInProgress), errors.Is(err, domain.ErrEndpointUnavailable):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded) && res.Status != domain.StatusDegraded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (api *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (api *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		api.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}
