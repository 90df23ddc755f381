package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prodbudget/quote-api/syncqueue"
)

// SyncHandler exposes the offline queue's depth so clients can show an
// unsynced indicator instead of a blocking error.
type SyncHandler struct {
	Queue *syncqueue.Queue
}

func NewSyncHandler(queue *syncqueue.Queue) *SyncHandler {
	return &SyncHandler{Queue: queue}
}

func (h *SyncHandler) GetStatus(c *gin.Context) {
	pending, err := h.Queue.Pending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read sync queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending": pending,
		"synced":  pending == 0,
	})
}
