package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	widgetHandler "github.com/zhouzirui/support-widget/backend/internal/handler/widget"
	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
	sessionService "github.com/zhouzirui/support-widget/backend/internal/service/session"
	widgetService "github.com/zhouzirui/support-widget/backend/internal/service/widget"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
	replyBuffer    = 8
)

var (
	errUnknownCommand = errors.New("unknown command")
	errInvalidPayload = errors.New("invalid command payload")
)

// WebSocketHandler WebSocket命令通道处理器
type WebSocketHandler struct {
	sessions *sessionService.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(sessions *sessionService.Service, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/widget/sessions/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type commandError struct {
	Command string `json:"command"`
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	shell, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("session_id", sessionID))
	logger.Info("websocket connected")

	events, unsubscribe := shell.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	replies := make(chan outgoingMessage, replyBuffer)
	replies <- newMessage("snapshot", sessionID, shell.Snapshot())

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, conn, sessionID, events, replies, logger)
		cancel()
		// Unblocks the read below.
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.dispatch(ctx, shell, &msg); err != nil {
			select {
			case replies <- newMessage("error", sessionID, toCommandError(msg.Type, err)):
			case <-ctx.Done():
			}
		}
	}

	cancel()
	<-done
	logger.Info("websocket disconnected")
}

// writeLoop owns every write on conn.
func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sessionID string, events <-chan widget.Event, replies <-chan outgoingMessage, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(msg outgoingMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-replies:
			if !write(msg) {
				return
			}
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if !write(eventMessage(sessionID, ev)) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

// dispatch applies one client command. Successful commands answer through the
// session's own event stream.
func (h *WebSocketHandler) dispatch(ctx context.Context, shell *widgetService.Shell, msg *inboundMessage) error {
	switch msg.Type {
	case "open":
		return shell.Open()
	case "close":
		return shell.Close()
	case "toggle":
		return shell.Toggle()
	case "back":
		return shell.Back()
	case "navigate":
		var payload struct {
			View string `json:"view"`
		}
		if err := decodeData(msg.Data, &payload); err != nil {
			return err
		}
		view, err := widget.ParseView(payload.View)
		if err != nil {
			return err
		}
		return shell.Navigate(view)
	case "menu":
		var payload struct {
			Item string `json:"item"`
		}
		if err := decodeData(msg.Data, &payload); err != nil {
			return err
		}
		item, err := widget.ParseMenuItem(payload.Item)
		if err != nil {
			return err
		}
		_, err = shell.SelectMenuItem(item)
		return err
	case "message":
		var payload struct {
			Text string `json:"text"`
		}
		if err := decodeData(msg.Data, &payload); err != nil {
			return err
		}
		_, err := shell.PostMessage(payload.Text)
		return err
	case "faq_search":
		var payload struct {
			Term string `json:"term"`
		}
		if err := decodeData(msg.Data, &payload); err != nil {
			return err
		}
		_, err := shell.SearchFAQ(payload.Term)
		return err
	case "callback_draft":
		var draft widget.CallbackRequest
		if err := decodeData(msg.Data, &draft); err != nil {
			return err
		}
		return shell.UpdateCallback(draft)
	case "callback_submit":
		return shell.SubmitCallback(ctx)
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, msg.Type)
	}
}

func decodeData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errInvalidPayload
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}

func toCommandError(command string, err error) commandError {
	ce := commandError{Command: command, Error: err.Error()}

	var verr *widget.ValidationError
	switch {
	case errors.As(err, &verr):
		ce.Status = http.StatusUnprocessableEntity
		ce.Code = string(verr.Code)
		ce.Error = verr.Message
	case errors.Is(err, errUnknownCommand), errors.Is(err, errInvalidPayload):
		ce.Status = http.StatusBadRequest
	default:
		ce.Status = widgetHandler.StatusFor(err)
	}
	return ce
}

func eventMessage(sessionID string, ev widget.Event) outgoingMessage {
	if ev.Type == widget.EventSnapshot && ev.Snapshot != nil {
		return newMessage(string(ev.Type), sessionID, ev.Snapshot)
	}
	return newMessage(string(ev.Type), sessionID, map[string]string{"url": ev.URL})
}

func newMessage(msgType, sessionID string, data any) outgoingMessage {
	return outgoingMessage{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}
