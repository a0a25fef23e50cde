package controllers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/middleware"
	"github.com/solecare/solecare-api/realtime"
)

const keepAliveInterval = 25 * time.Second

// StreamChanges handles GET /api/v1/events - a Server-Sent Events channel
// carrying lineItemUpdated, appointmentUpdated and unavailabilityUpdated.
func StreamChanges(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		branchID := c.Query("branch_id")
		if branchID == "" {
			branchID = middleware.GetBranchID(c)
		}

		client := hub.Subscribe(branchID)
		defer hub.Unsubscribe(client)

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		c.SSEvent("connected", gin.H{"clientId": client.ID})
		c.Writer.Flush()

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case msg, ok := <-client.Events():
				if !ok {
					return false
				}
				c.SSEvent(msg.Event, msg.Data)
				return true
			case <-keepAlive.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
