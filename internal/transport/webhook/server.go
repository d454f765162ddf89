// Package webhook exposes the WhatsApp Cloud API webhook and the operational
// endpoints of the bot.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stdErrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/astro-bot/internal/bot"
	"github.com/Proton-105/astro-bot/internal/lifecycle"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/middleware"
	"github.com/Proton-105/astro-bot/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Submitter accepts inbound envelopes for asynchronous processing.
type Submitter interface {
	Submit(env *message.Envelope) error
}

// Config holds webhook credentials.
type Config struct {
	// VerifyToken answers the subscription handshake.
	VerifyToken string
	// AppSecret enables X-Hub-Signature-256 checks when set.
	AppSecret string
}

// Handler serves the webhook.
type Handler struct {
	cfg    Config
	bot    Submitter
	probes lifecycle.HealthChecker
	log    *slog.Logger
}

// NewRouter builds the HTTP router of the bot process.
func NewRouter(cfg Config, b Submitter, probes lifecycle.HealthChecker, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	if probes == nil {
		probes = lifecycle.NewProbes(nil, log)
	}
	h := &Handler{cfg: cfg, bot: b, probes: probes, log: log}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware)
	r.Use(middleware.New(log))

	r.Get("/webhook", h.verify)
	r.Post("/webhook", h.receive)
	r.Get("/healthz", h.liveness)
	r.Get("/readyz", h.readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// verify answers the Cloud API subscription handshake.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.cfg.VerifyToken == "" ||
		!hmac.Equal([]byte(q.Get("hub.verify_token")), []byte(h.cfg.VerifyToken)) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// receive acknowledges a notification as soon as its messages are queued.
// Turns run on the dispatcher, never on the request goroutine.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if h.cfg.AppSecret != "" && !validSignature(h.cfg.AppSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.log.WarnContext(r.Context(), "webhook signature mismatch")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	for _, env := range n.envelopes() {
		err := h.bot.Submit(env)
		switch {
		case err == nil:
		case stdErrors.Is(err, bot.ErrDispatcherClosed):
			// Let the platform redeliver to a live replica.
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		default:
			h.log.WarnContext(r.Context(), "dropping inbound message",
				slog.String("message_id", env.MessageID),
				slog.String("phone", env.From),
				slog.Any("error", err),
			)
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) liveness(w http.ResponseWriter, r *http.Request) {
	h.probe(w, r.Context(), h.probes.Liveness)
}

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	h.probe(w, r.Context(), h.probes.Readiness)
}

func (h *Handler) probe(w http.ResponseWriter, ctx context.Context, fn func(context.Context) error) {
	w.Header().Set("Content-Type", "application/json")
	if err := fn(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func validSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
