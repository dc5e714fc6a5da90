package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"lctree/engine"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage is sent for every request read from the socket, in order.
type wsMessage struct {
	Type     string           `json:"type"`
	Analysis *engine.Analysis `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// handleAnalyseWS keeps a connection open for a client stepping through a
// game: each Request is answered with an "analysis" or "error" message,
// and consecutive positions of one game reuse the search tree.
func (s *Server) handleAnalyseWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req Request
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}

		msg := wsMessage{Type: "analysis"}
		if err := json.Unmarshal(data, &req); err != nil {
			msg = wsMessage{Type: "error", Error: "bad request: " + err.Error()}
		} else if analysis, err := s.analyse(r.Context(), req); err != nil {
			msg = wsMessage{Type: "error", Error: err.Error()}
		} else {
			msg.Analysis = &analysis
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Warn().Err(err).Msg("failed to write websocket message")
			return
		}
	}
}
