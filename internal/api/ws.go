package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsMaxInput  = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type chatMessage struct {
	Text string `json:"text"`
}

// ChatSocket runs the dialog over a websocket: each {"text": ...} frame gets
// one reply frame.
func (h *APIHandler) ChatSocket(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[API] websocket upgrade for user %d: %v", userID, err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxInput)

	ctx := c.Request.Context()
	for {
		var msg chatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[API] websocket read for user %d: %v", userID, err)
			}
			return
		}

		reply, err := h.deps.Dialog.Handle(ctx, userID, msg.Text)
		if err != nil {
			log.Printf("[API] chat for user %d failed: %v", userID, err)
			reply.Error = "session unavailable"
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			log.Printf("[API] websocket write for user %d: %v", userID, err)
			return
		}
	}
}
