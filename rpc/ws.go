package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"gigchain/core"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// eventFilter narrows a stream to one module and, optionally, one event type.
type eventFilter struct {
	module    string
	eventType string
}

func (f eventFilter) match(update core.EventUpdate) bool {
	if f.module != "" && update.Module != f.module {
		return false
	}
	if f.eventType != "" && (update.Event == nil || update.Event.Type != f.eventType) {
		return false
	}
	return true
}

// handleEventsWS streams committed events. Clients resume with
// ?cursor=<sequence> and receive the retained backlog first. ?module= and
// ?type= filter the stream.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cursor := strings.TrimSpace(q.Get("cursor"))
	filter := eventFilter{
		module:    strings.ToLower(strings.TrimSpace(q.Get("module"))),
		eventType: strings.TrimSpace(q.Get("type")),
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// CloseRead keeps control frames flowing so Ping can complete.
	ctx := conn.CloseRead(r.Context())
	err = s.streamEvents(ctx, conn, cursor, filter)
	if err == nil || ctx.Err() != nil {
		return
	}
	if websocket.CloseStatus(err) == -1 {
		s.logger.Debug("event stream ended", slog.Any("error", err))
		_ = conn.Close(websocket.StatusInternalError, "stream error")
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor string, filter eventFilter) error {
	updates, cancel, backlog := s.node.Subscribe(ctx, cursor)
	defer cancel()

	for _, update := range backlog {
		if !filter.match(update) {
			continue
		}
		if err := writeEventUpdate(ctx, conn, update); err != nil {
			return err
		}
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping.C:
			pingCtx, stop := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			stop()
			if err != nil {
				return err
			}
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if !filter.match(update) {
				continue
			}
			if err := writeEventUpdate(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeEventUpdate(ctx context.Context, conn *websocket.Conn, update core.EventUpdate) error {
	data, err := json.Marshal(eventUpdateResponse(update))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
