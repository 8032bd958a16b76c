package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chattersphere/internal/service"
)

const (
	authClaimsKey   = "auth_claims"
	accessTokenName = "access_token"
)

// JWTAuthMiddleware exige un access token valido y guarda los claims en el contexto.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !jwtSvc.Enabled() {
			abortAuth(c, http.StatusInternalServerError, "jwt not configured")
			return
		}
		token := bearerToken(c)
		if token == "" {
			abortAuth(c, http.StatusUnauthorized, "missing token")
			return
		}
		if authenticate(c, jwtSvc, token) {
			c.Next()
		}
	}
}

// OptionalJWTMiddleware valida el token solo cuando viene. Sin token la peticion
// sigue anonima; con un token invalido se rechaza.
func OptionalJWTMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !jwtSvc.Enabled() {
			c.Next()
			return
		}
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		if authenticate(c, jwtSvc, token) {
			c.Next()
		}
	}
}

// bearerToken lee el header Authorization o, para clientes WebSocket y
// EventSource que no pueden fijar headers, el query param access_token.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return strings.TrimSpace(c.Query(accessTokenName))
}

func authenticate(c *gin.Context, jwtSvc *service.JWTService, token string) bool {
	claims, err := jwtSvc.ParseAccessToken(token)
	switch {
	case errors.Is(err, service.ErrJWTExpired):
		abortAuth(c, http.StatusUnauthorized, "token expired")
		return false
	case err != nil:
		abortAuth(c, http.StatusUnauthorized, "invalid token")
		return false
	}
	c.Set(authClaimsKey, claims)
	return true
}

// requireParticipant deja pasar peticiones anonimas; con token, su usuario debe
// ser alguno de userIDs.
func requireParticipant(c *gin.Context, userIDs ...string) bool {
	claims, ok := GetAuthClaims(c)
	if !ok {
		return true
	}
	for _, id := range userIDs {
		if strings.TrimSpace(id) == claims.UserID {
			return true
		}
	}
	abortAuth(c, http.StatusForbidden, "token does not belong to this user")
	return false
}

func abortAuth(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
