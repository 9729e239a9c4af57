package httpx

import (
	"net/http"

	"log/slog"

	"github.com/PrashantKumarD/audiosync/internal/app"
	"github.com/PrashantKumarD/audiosync/internal/ws"
	"github.com/PrashantKumarD/audiosync/pkg/mediasign"
	"github.com/PrashantKumarD/audiosync/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, logger *slog.Logger, hub *ws.Hub) http.Handler {
	mw := NewMiddleware(cfg)
	media := &MediaAPI{
		Signer: mediasign.New(cfg.MediaCloud, cfg.MediaAPIKey, cfg.MediaAPISecret, cfg.UploadGrantTTL),
		Log:    logger,
	}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	// Upload signature side-channel
	mux.Handle("/api/media/sign", http.HandlerFunc(media.Sign))

	// CORS + rate limit applied globally
	return mw.Wrap(mux)
}
