package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"github.com/PrashantKumarD/audiosync/pkg/mediasign"
)

type MediaAPI struct {
	Signer *mediasign.Signer
	Log    *slog.Logger
}

// Sign issues upload credentials for a direct upload to the media host. The
// returned URL comes back to the server later through the send_audio event.
func (a *MediaAPI) Sign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tk, err := a.Signer.Issue(time.Now())
	if err != nil {
		a.Log.Error("media.sign", "err", err)
		http.Error(w, "signing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, tk)
}

// send JSON with proper headers
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
