package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/relaykit/internal/protocol"
	"github.com/coder/websocket"
)

// writeTimeout bounds one WebSocket write.
const writeTimeout = 5 * time.Second

// ServeWebSocket handles GET /api/ws. Every inbound text message is one command; the
// connection receives the full relay state first, then relay updates and events.
// Rejected commands are answered with an error frame and the connection stays open.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.Logger.Warn("WS: accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(protocol.MaxMessageBytes)

	client, err := s.Hub.Subscribe()
	if err != nil {
		conn.Close(websocket.StatusTryAgainLater, err.Error())
		return
	}
	defer s.Hub.Unsubscribe(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.writeFrames(ctx, conn, client)

	if err := s.Hub.Sync(ctx, client); err != nil {
		s.Logger.Warn("WS: initial sync failed", "client", client.ID(), "err", err)
		return
	}
	s.Logger.Info("WS: Client connected", "client", client.ID())

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				s.Logger.Debug("WS: read failed", "client", client.ID(), "err", err)
			}
			s.Logger.Info("WS: Client disconnected", "client", client.ID())
			return
		}
		if typ != websocket.MessageText {
			s.Hub.Reject(client, errors.New("binary messages are not supported"))
			continue
		}
		cmd, err := s.Hub.Decoder().Decode(data)
		if err != nil {
			s.Hub.Reject(client, err)
			continue
		}
		if err := s.Hub.Handle(ctx, client, cmd); err != nil {
			s.Logger.Warn("WS: command rejected", "client", client.ID(), "type", string(cmd.Type), "err", err)
			s.Hub.Reject(client, err)
		}
	}
}

func (s *Server) writeFrames(ctx context.Context, conn *websocket.Conn, client *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-client.Frames():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "disconnected by server")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, f.Data)
			cancel()
			if err != nil {
				s.Logger.Debug("WS: write failed", "client", client.ID(), "err", err)
				return
			}
		}
	}
}
