package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/pkg/jwt"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// JWTAuth verifies the bearer token and stores the caller as a domain.Actor.
// Browsers cannot set headers on websocket upgrades, so a "token" query
// parameter is accepted as well.
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			common.ErrorResponse(c, http.StatusUnauthorized, "Missing or malformed authorization header", nil)
			c.Abort()
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, http.StatusUnauthorized, "Token expired", err)
			} else {
				common.ErrorResponse(c, http.StatusUnauthorized, "Invalid token", err)
			}
			c.Abort()
			return
		}

		role := domain.Role(claims.Role)
		switch role {
		case domain.RoleAdmin, domain.RoleAdvisor, domain.RoleCompliance:
		default:
			common.ErrorResponse(c, http.StatusForbidden, "Unknown role", nil)
			c.Abort()
			return
		}

		c.Set(actorKey, domain.Actor{ID: claims.UserID, OrgID: claims.OrgID, Role: role})
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.Split(h, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if t := c.Query("token"); t != "" {
		return t, true
	}
	return "", false
}

// GetActor returns the authenticated caller; the zero Actor when there is none
func GetActor(c *gin.Context) domain.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}
	}
	actor, _ := v.(domain.Actor)
	return actor
}

// GetUserID extracts the caller's user id
func GetUserID(c *gin.Context) string {
	return GetActor(c).ID
}
