package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lossreview/internal/review"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// CORS is handled at the HTTP layer; the websocket accepts any origin
	// the middleware let through.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsChatMessage struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// handleChatWS keeps one expert-QA conversation per connection. Each inbound
// message runs the chat graph against the stored run and streams the reply
// back on the same socket.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var history []review.ChatMessage
	for {
		var msg wsChatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		requestID := strings.TrimSpace(msg.RequestID)
		st, _ := s.recorder.Lookup(r.Context(), requestID)
		st.RequestID = requestID
		st.Input.UserMessage = strings.TrimSpace(msg.Message)
		if st.Input.UserMessage == "" {
			st.Input.UserMessage = st.Input.DecisionBasis
		}
		st.History = history
		st.Reply = nil
		st.Degraded = nil

		if err := s.chat.Run(r.Context(), s.rt, &st); err != nil {
			s.log.Error("websocket chat run failed", zap.String("request_id", requestID), zap.Error(err))
			return
		}
		if err := conn.WriteJSON(chatResponse{RequestID: requestID, Reply: st.Reply, Degraded: st.Degraded}); err != nil {
			s.log.Warn("websocket write failed", zap.Error(err))
			return
		}
		history = append(history, review.ChatMessage{Role: "user", Content: st.Input.UserMessage})
		if st.Reply != nil {
			history = append(history, review.ChatMessage{Role: "model", Content: st.Reply.Summary})
		}
	}
}
