package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/handler/stream"
	"github.com/zhouzirui/support-widget/backend/internal/handler/widget"
	middlewarePkg "github.com/zhouzirui/support-widget/backend/internal/middleware"
	sessionService "github.com/zhouzirui/support-widget/backend/internal/service/session"
	widgetService "github.com/zhouzirui/support-widget/backend/internal/service/widget"
	"github.com/zhouzirui/support-widget/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(sessions *sessionService.Service, faqs *widgetService.FaqIndex, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": sessions.Count(),
			"faqs":     faqs.Len(),
		})
	})

	widgetHandler := widget.New(sessions, faqs, logger)
	eventsHandler := stream.NewEventsHandler(sessions, logger)
	wsHandler := stream.NewWebSocketHandler(sessions, logger)

	r.Route("/api", func(api chi.Router) {
		widgetHandler.RegisterRoutes(api)
		eventsHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
