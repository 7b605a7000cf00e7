package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/co-cddo/webcaf/internal/assessment"
)

const wsWriteTimeout = 5 * time.Second

// handleProgressWS streams the progress of one assessment: the current state
// on connect, then a fresh copy after every saved section.
func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	if _, err := s.svc.Progress(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade the websocket", "assessment_id", id, "error", err)
		return
	}
	defer conn.CloseNow()

	updates, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	// Clients never send; CloseRead handles control frames and cancels ctx
	// once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	slog.Debug("progress subscriber connected", "assessment_id", id)
	if err := s.sendProgress(ctx, conn, id); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			slog.Debug("progress subscriber gone", "assessment_id", id)
			return
		case <-updates:
			if err := s.sendProgress(ctx, conn, id); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendProgress(ctx context.Context, conn *websocket.Conn, id int64) error {
	p, err := s.svc.Progress(ctx, id)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("failed to load progress", "assessment_id", id, "error", err)
		}
		conn.Close(websocket.StatusInternalError, "progress unavailable")
		return err
	}
	return sendJSON(ctx, conn, p)
}

func sendJSON(ctx context.Context, conn *websocket.Conn, p *assessment.Progress) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	err := wsjson.Write(ctx, conn, p)
	if err != nil {
		slog.Warn("failed to write websocket JSON", "error", err)
	}
	return err
}
