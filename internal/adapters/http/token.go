package http

import (
	"net/http"

	"github.com/dkeye/Reception/internal/adapters/credential"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type tokenQuery struct {
	Identity string `form:"identity" binding:"required"`
	Room     string `form:"room" binding:"required"`
}

// tokenProxy forwards to the upstream token service and answers with the
// same {token, wsUrl} shape.
func tokenProxy(fetcher core.CredentialFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q tokenQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing identity or room"})
			return
		}
		cred, err := fetcher.Fetch(c.Request.Context(), q.Identity, domain.RoomID(q.Room))
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("room", q.Room).Msg("token proxy")
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, credential.Response{Token: cred.Token, WSURL: cred.Endpoint})
	}
}
