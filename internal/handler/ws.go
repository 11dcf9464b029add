package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/livingcool/kisanmind-sub000/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origins are already filtered by the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket upgrades the connection and runs the push transport: each
// inbound message is dispatched to the orchestrator and every resulting
// envelope is written back on the same connection.
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var msg types.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read failed: %v", err)
			}
			return
		}

		for _, envelope := range h.orch.HandleMessage(c.Request.Context(), msg) {
			if err := conn.WriteJSON(envelope); err != nil {
				log.Printf("WebSocket write failed: %v", err)
				return
			}
		}
	}
}
