package handler

import "github.com/gin-gonic/gin"

// ActorHeader carries the identity forwarded by the upstream gateway.
const ActorHeader = "X-Actor-Id"

func actorFromContext(c *gin.Context) string {
	if actor := c.GetHeader(ActorHeader); actor != "" {
		return actor
	}
	return "anonymous"
}
