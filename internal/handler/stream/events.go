package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
	sessionService "github.com/zhouzirui/support-widget/backend/internal/service/session"
	"github.com/zhouzirui/support-widget/backend/pkg/utils"
)

const keepAliveInterval = 15 * time.Second

// EventsHandler streams session events over Server-Sent Events.
type EventsHandler struct {
	sessions  *sessionService.Service
	logger    *zap.Logger
	keepAlive time.Duration
}

// NewEventsHandler creates an SSE handler.
func NewEventsHandler(sessions *sessionService.Service, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{sessions: sessions, logger: logger, keepAlive: keepAliveInterval}
}

// RegisterRoutes mounts the event stream under a session.
func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/widget/sessions/{sessionID}/events", h.handleEvents)
}

// handleEvents sends the current snapshot, then every event the session publishes
// until the client goes away or the session is shut down.
func (h *EventsHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	shell, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := shell.Subscribe()
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	logger := h.logger.With(zap.String("session_id", sessionID))
	logger.Debug("sse stream opened")
	defer logger.Debug("sse stream closed")

	snap := shell.Snapshot()
	initial := widget.Event{Type: widget.EventSnapshot, Snapshot: &snap}
	if err := utils.SendSSEEvent(w, flusher, string(initial.Type), initial); err != nil {
		logger.Debug("sse write failed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": sessionID})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				logger.Debug("sse write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		}
	}
}
