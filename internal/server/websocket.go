package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/faisal-shah/logmerge/internal/output"
	"github.com/faisal-shah/logmerge/internal/store"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// tailMessage is one merged batch as sent to WebSocket clients.
type tailMessage struct {
	Total int             `json:"total"`
	Rows  []output.Object `json:"rows"`
}

// handleWebSocket upgrades to WebSocket and streams merged tail batches to
// the client until it disconnects or the hub shuts down.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	tails := s.cfg.Hub.Subscribe()
	defer s.cfg.Hub.Unsubscribe(tails)

	// Read pump: detect client disconnect.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	f := output.NewFormatter(s.cfg.Schema, s.cfg.Columns, s.cfg.TimeLayout)

	// Write pump: send batches as JSON.
	for {
		select {
		case <-closed:
			return
		case t, ok := <-tails:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			msg := tailMessage{Total: t.Total, Rows: make([]output.Object, 0, len(t.Records))}
			for _, rec := range t.Records {
				msg.Rows = append(msg.Rows, f.Object(store.Project(rec, f.Columns())))
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
