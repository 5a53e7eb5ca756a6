package api

import (
	"fmt"
	"net/http"
	"time"

	"resumeflow/internal/application/common/slogger"
	"resumeflow/internal/application/dto"
	"resumeflow/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	progressWriteWait = 10 * time.Second
	progressPingEvery = 30 * time.Second
)

// ProgressHandler bridges the session progress channel onto a websocket
// so clients can watch a batch complete without polling.
type ProgressHandler struct {
	stream       outbound.ProgressStream
	errorHandler ErrorHandler
	upgrader     websocket.Upgrader
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(stream outbound.ProgressStream, errorHandler ErrorHandler) *ProgressHandler {
	return &ProgressHandler{
		stream:       stream,
		errorHandler: errorHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Session ids are unguessable; origin checks are left to the
			// fronting proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// StreamProgress handles GET /sessions/{session_id}/progress. Events
// are best-effort: a client that connects late only sees transitions
// that happen after it subscribed.
func (h *ProgressHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid session id: %w", err))
		return
	}

	ctx := r.Context()
	events, err := h.stream.SubscribeProgress(ctx, dto.SessionChannel(sessionID))
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		slogger.Warn(ctx, "Websocket upgrade failed", slogger.Field("error", err.Error()))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			_ = err
		}
	}()

	// Reader goroutine drains client frames so pongs and close frames
	// are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case payload, ok := <-events:
			if !ok {
				return
			}
			if err := h.writeMessage(conn, websocket.TextMessage, payload); err != nil {
				slogger.Debug(ctx, "Progress client gone", slogger.Field("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := h.writeMessage(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *ProgressHandler) writeMessage(conn *websocket.Conn, messageType int, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(progressWriteWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, payload)
}
