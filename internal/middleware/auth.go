package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/requestdata"
)

// OwnerHeader carries the caller identity resolved by the gateway in
// front of this service. The service trusts it; credential checking is
// the gateway's job.
const OwnerHeader = "X-Owner-ID"

type AuthMiddleware struct {
	log *logger.Logger
}

func NewAuthMiddleware(log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware")}
}

func (am *AuthMiddleware) RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(OwnerHeader))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing owner identity"})
			return
		}
		ownerID, err := uuid.Parse(raw)
		if err != nil || ownerID == uuid.Nil {
			am.log.Debug("Rejecting malformed owner header", "owner_id", raw)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed owner identity"})
			return
		}
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{OwnerID: ownerID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
