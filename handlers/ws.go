package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"github.com/prodbudget/quote-api/utils"
)

// WSHandler fans budget-change signals out to every client watching a quote.
// Clients reload through the REST API on signal; the payload carries no
// budget data.
type WSHandler struct {
	M *melody.Melody
}

func NewWSHandler() *WSHandler {
	m := melody.New()

	m.Config.MaxMessageSize = 64 * 1024

	// Keep-alive below typical proxy idle timeouts.
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		if quoteID, ok := s.Get("quote_id"); ok {
			utils.LogWebSocket("connected", quoteID.(string))
		}
	})

	m.HandleDisconnect(func(s *melody.Session) {
		if quoteID, ok := s.Get("quote_id"); ok {
			utils.LogWebSocket("disconnected", quoteID.(string))
		}
	})

	m.HandleError(func(s *melody.Session, err error) {
		log.Printf("❌ WebSocket error: %v", err)
	})

	return &WSHandler{M: m}
}

// HandleWS upgrades the request and pins the session to a quote.
func (h *WSHandler) HandleWS(c *gin.Context) {
	keys := map[string]interface{}{"quote_id": c.Param("id")}
	if err := h.M.HandleRequestWithKeys(c.Writer, c.Request, keys); err != nil {
		log.Printf("❌ Failed to upgrade websocket: %v", err)
	}
}

type wsSignal struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// BroadcastUpdate signals every session watching the quote.
func (h *WSHandler) BroadcastUpdate(quoteID, updateType, userID string) {
	msg, err := json.Marshal(wsSignal{Type: updateType, User: userID})
	if err != nil {
		return
	}

	err = h.M.BroadcastFilter(msg, func(s *melody.Session) bool {
		id, exists := s.Get("quote_id")
		return exists && id == quoteID
	})
	if err != nil {
		log.Printf("⚠️ Error broadcasting to quote %s: %v", quoteID, err)
	}
}
