package http

import (
	"net/http"

	"github.com/dkeye/Reception/internal/app/dashboard"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/dkeye/Reception/internal/render"
	"github.com/gin-gonic/gin"
)

type dashboardHandlers struct {
	d *dashboard.Dashboard
}

// Surfaces is the hub source for a dashboard.
func Surfaces(d *dashboard.Dashboard) func() any {
	return func() any { return render.RenderAll(d.Feeds()) }
}

func (h *dashboardHandlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, render.RenderAll(h.d.Feeds()))
}

func (h *dashboardHandlers) get(c *gin.Context) {
	f, ok := h.d.Feed(domain.RoomID(c.Param("room")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	c.JSON(http.StatusOK, render.Render(f))
}

func (h *dashboardHandlers) enterFullscreen(c *gin.Context) {
	room := domain.RoomID(c.Param("room"))
	if _, ok := h.d.Feed(room); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	if !h.d.EnterFullscreen(room) {
		c.JSON(http.StatusConflict, gin.H{"error": "fullscreen disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fullscreen": room})
}

func (h *dashboardHandlers) exitFullscreen(c *gin.Context) {
	h.d.ExitFullscreen()
	c.Status(http.StatusNoContent)
}

func (h *dashboardHandlers) toggleMute(c *gin.Context) {
	muted, ok := h.d.ToggleRemotePlayback(domain.RoomID(c.Param("room")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": muted})
}

func (h *dashboardHandlers) toggleMic(c *gin.Context) {
	muted, ok := h.d.ToggleLocal(domain.RoomID(c.Param("room")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": muted})
}
