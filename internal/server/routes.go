package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/urfave/negroni/v3"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/signaling"
)

const healthTimeout = 2 * time.Second

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// Origins are enforced by the CORS layer on plain HTTP; browsers joining
	// interview rooms come from the web app's own origin.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins for CORS. Empty means any origin.
	AllowedOrigins []string

	Logger *slog.Logger
}

// NewHandler builds the HTTP surface of the signaling server: the websocket
// endpoint, the health check and the metrics endpoint, wrapped in panic
// recovery and CORS.
func NewHandler(hub *signaling.Hub, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", HealthHandler(hub))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/ws", ServeWs(hub, log))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	recovery.Logger = slog.NewLogLogger(log.Handler(), slog.LevelError)

	n := negroni.New()
	n.Use(recovery)
	n.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))
	n.UseHandler(mux)
	return n
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the hub as a dependency.
func ServeWs(hub *signaling.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := signaling.NewClient(hub, conn)
		if !hub.Register(client) {
			conn.Close()
			return
		}
		log.Info("user connected", "client", client.ID, "remote", r.RemoteAddr)

		// The pumps own the client's lifecycle from here.
		go client.WritePump()
		go client.ReadPump()
	}
}

// HealthHandler reports a snapshot of the room registry.
func HealthHandler(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status, err := hub.Snapshot(ctx)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "UNAVAILABLE",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
