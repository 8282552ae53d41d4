package widget

import (
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
	sessionService "github.com/zhouzirui/support-widget/backend/internal/service/session"
	widgetService "github.com/zhouzirui/support-widget/backend/internal/service/widget"
	"github.com/zhouzirui/support-widget/backend/pkg/utils"
)

// Handler 挂件会话的HTTP处理器
type Handler struct {
	sessions *sessionService.Service
	faqs     *widgetService.FaqIndex
	logger   *zap.Logger
}

// New 创建挂件处理器
func New(sessions *sessionService.Service, faqs *widgetService.FaqIndex, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, faqs: faqs, logger: logger}
}

// RegisterRoutes 注册挂件相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/faqs", h.handleCatalogSearch)

	r.Post("/widget/sessions", h.handleCreateSession)

	const session = "/widget/sessions/{sessionID}"
	r.Get(session, h.handleSnapshot)
	r.Delete(session, h.handleDeleteSession)
	r.Post(session+"/open", h.withShell(func(s *widgetService.Shell, _ *http.Request) error { return s.Open() }))
	r.Post(session+"/close", h.withShell(func(s *widgetService.Shell, _ *http.Request) error { return s.Close() }))
	r.Post(session+"/toggle", h.withShell(func(s *widgetService.Shell, _ *http.Request) error { return s.Toggle() }))
	r.Post(session+"/back", h.withShell(func(s *widgetService.Shell, _ *http.Request) error { return s.Back() }))
	r.Post(session+"/view", h.withShell(h.navigate))
	r.Put(session+"/callback", h.withShell(h.updateCallback))
	r.Post(session+"/menu", h.handleMenu)
	r.Post(session+"/messages", h.handlePostMessage)
	r.Get(session+"/faqs", h.handleSessionSearch)
	r.Post(session+"/callback/submit", h.handleSubmitCallback)
}

type faqResponse struct {
	Query   string            `json:"query"`
	Results []widget.FaqEntry `json:"results"`
}

// handleCatalogSearch 无会话的FAQ检索
func (h *Handler) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	results := slices.Collect(h.faqs.Search(query))
	if results == nil {
		results = []widget.FaqEntry{}
	}
	utils.RespondJSON(w, http.StatusOK, faqResponse{Query: query, Results: results})
}

// handleCreateSession 创建挂件会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	shell, err := h.sessions.CreateSession(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, shell.Snapshot())
}

// handleSnapshot 返回会话快照
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	shell, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, shell.Snapshot())
}

// handleDeleteSession 关闭并移除会话
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) navigate(s *widgetService.Shell, r *http.Request) error {
	var payload struct {
		View string `json:"view"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		return errBadRequest
	}
	view, err := widget.ParseView(payload.View)
	if err != nil {
		return err
	}
	return s.Navigate(view)
}

func (h *Handler) updateCallback(s *widgetService.Shell, r *http.Request) error {
	var draft widget.CallbackRequest
	if err := utils.DecodeJSON(r, &draft); err != nil {
		return errBadRequest
	}
	return s.UpdateCallback(draft)
}

type menuResponse struct {
	Result   widgetService.MenuResult `json:"result"`
	Snapshot widget.Snapshot          `json:"snapshot"`
}

// handleMenu 处理菜单选择
func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	shell, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Item string `json:"item"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		h.respondError(w, errBadRequest)
		return
	}
	item, err := widget.ParseMenuItem(payload.Item)
	if err != nil {
		h.respondError(w, err)
		return
	}

	result, err := shell.SelectMenuItem(item)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, menuResponse{Result: result, Snapshot: shell.Snapshot()})
}

type postMessageResponse struct {
	Message  widget.Message  `json:"message"`
	Snapshot widget.Snapshot `json:"snapshot"`
}

// handlePostMessage 提交用户消息，回复异步生成
func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	shell, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		h.respondError(w, errBadRequest)
		return
	}

	msg, err := shell.PostMessage(payload.Text)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, postMessageResponse{Message: msg, Snapshot: shell.Snapshot()})
}

// handleSessionSearch 在会话的FAQ视图中检索
func (h *Handler) handleSessionSearch(w http.ResponseWriter, r *http.Request) {
	shell, ok := h.lookup(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	results, err := shell.SearchFAQ(query)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if results == nil {
		results = []widget.FaqEntry{}
	}
	utils.RespondJSON(w, http.StatusOK, faqResponse{Query: query, Results: results})
}

// handleSubmitCallback 提交回电请求
func (h *Handler) handleSubmitCallback(w http.ResponseWriter, r *http.Request) {
	shell, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := shell.SubmitCallback(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, shell.Snapshot())
}

// withShell 解析会话并在成功后返回最新快照
func (h *Handler) withShell(fn func(*widgetService.Shell, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shell, ok := h.lookup(w, r)
		if !ok {
			return
		}
		if err := fn(shell, r); err != nil {
			h.respondError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, shell.Snapshot())
	}
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*widgetService.Shell, bool) {
	shell, err := h.sessions.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, err)
		return nil, false
	}
	return shell, true
}

var errBadRequest = errors.New("invalid request body")

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var verr *widget.ValidationError
	if errors.As(err, &verr) {
		utils.RespondErrorCode(w, http.StatusUnprocessableEntity, string(verr.Code), verr.Message)
		return
	}

	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("widget request failed", zap.Error(err))
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, err.Error())
}

// StatusFor maps widget errors onto HTTP status codes.
func StatusFor(err error) int {
	var verr *widget.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sessionService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, widgetService.ErrWidgetClosed),
		errors.Is(err, widgetService.ErrViewInactive),
		errors.Is(err, widgetService.ErrReplyPending),
		errors.Is(err, widgetService.ErrSubmitPending),
		errors.Is(err, widgetService.ErrSubmissionCancelled),
		errors.Is(err, widgetService.ErrShutdown):
		return http.StatusConflict
	case errors.Is(err, widgetService.ErrEmptyMessage),
		errors.Is(err, widget.ErrUnknownView),
		errors.Is(err, widget.ErrUnknownMenuItem),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
