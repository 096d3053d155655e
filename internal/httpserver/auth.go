package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const contextKeyIdentity = "identity"

// Identity is the authenticated caller extracted from the bearer token. The
// ledger trusts these values; authorization happened upstream when the token
// was issued.
type Identity struct {
	UserID string
	Role   string
}

type sessionClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func authMiddleware(signingKey []byte, issuer string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		claims := &sessionClaims{}
		options := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
		if issuer != "" {
			options = append(options, jwt.WithIssuer(issuer))
		}
		token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			return signingKey, nil
		}, options...)
		if err != nil || !token.Valid || claims.UserID == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		ctx.Set(contextKeyIdentity, Identity{UserID: claims.UserID, Role: claims.Role})
		ctx.Next()
	}
}

func requireRole(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity := currentIdentity(ctx)
		for _, role := range roles {
			if identity.Role == role {
				ctx.Next()
				return
			}
		}
		ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}

func currentIdentity(ctx *gin.Context) Identity {
	value, exists := ctx.Get(contextKeyIdentity)
	if !exists {
		return Identity{}
	}
	identity, _ := value.(Identity)
	return identity
}
