package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Reception/internal/app"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/dkeye/Reception/internal/render"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type guestHandlers struct {
	ctx    context.Context
	guests *app.Registry
}

// start creates the room's page if needed. A page that already exists is
// reused whatever its status, so a room never gets two racing sessions.
func (h *guestHandlers) start(c *gin.Context) {
	room := domain.RoomID(c.Param("room"))
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing room"})
		return
	}
	page, created := h.guests.GetOrCreate(room)
	if created {
		log.Info().Str("module", "adapters.http").Str("room", string(room)).Str("sid", c.GetString("client_token")).Msg("guest start")
		go page.Start(h.ctx)
	}
	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}
	c.JSON(status, render.RenderGuest(page.State()))
}

func (h *guestHandlers) get(c *gin.Context) {
	page, ok := h.guests.Get(domain.RoomID(c.Param("room")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	c.JSON(http.StatusOK, render.RenderGuest(page.State()))
}

func (h *guestHandlers) toggleMute(c *gin.Context) {
	page, ok := h.guests.Get(domain.RoomID(c.Param("room")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": page.ToggleLocalMute()})
}

func (h *guestHandlers) dispose(c *gin.Context) {
	if !h.guests.Remove(domain.RoomID(c.Param("room"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	c.Status(http.StatusNoContent)
}
