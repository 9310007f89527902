package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/kvcache/internal/auth"
	"github.com/charlesng35/kvcache/internal/realtime"
	"github.com/charlesng35/kvcache/pkg/errors"
	"github.com/charlesng35/kvcache/pkg/response"
)

const anonymousSubject = "anonymous"

// RealtimeHandler upgrades HTTP connections into websocket event streams.
type RealtimeHandler struct {
	hub *realtime.Hub
	jwt *iauth.JWTService
}

// NewRealtimeHandler constructs a realtime handler. A nil JWT service accepts
// anonymous subscribers.
func NewRealtimeHandler(hub *realtime.Hub, jwt *iauth.JWTService) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, jwt: jwt}
}

// Stream handles GET /ws/cache. Browsers cannot set headers on websocket
// requests, so the token may also arrive as ?token=.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	subject := anonymousSubject
	if h.jwt != nil {
		token := bearerToken(c)
		if token == "" {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		claims, err := h.jwt.ValidateToken(token)
		if err != nil || !claims.HasScope(iauth.ScopeRead) {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		subject = claims.Subject
	}

	streams := gatherStreams(c)
	if len(streams) == 0 {
		streams = []string{realtime.StreamCacheEvents}
	}
	for _, stream := range streams {
		if _, ok := realtime.KnownStreams[stream]; !ok {
			response.Error(c, errors.ErrNotFound)
			return
		}
	}

	h.hub.Serve(subject, streams, c.Writer, c.Request)
}

func bearerToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		return token
	}
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

func gatherStreams(c *gin.Context) []string {
	streams := c.QueryArray("stream")
	if raw := c.Query("streams"); raw != "" {
		streams = append(streams, strings.Split(raw, ",")...)
	}
	return realtime.NormalizeStreams(streams)
}
