package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/farmlens/backend/internal/domain"
)

// farmerClaimKey holds the token's farmer_id in the gin context
const farmerClaimKey = "auth.farmer_id"

// GenerateToken signs an HS256 token. An empty farmerID yields a service
// token that may act for any farmer.
func GenerateToken(secret, farmerID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is empty")
	}

	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	if farmerID != "" {
		claims["farmer_id"] = farmerID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// parseToken validates tokenString and returns its farmer_id claim
func parseToken(secret, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", domain.ErrUnauthorized
	}
	farmerID, _ := claims["farmer_id"].(string)
	return farmerID, nil
}

// AuthMiddleware requires a valid bearer token when secret is set.
// WebSocket upgrades may pass the token as ?token= since browsers cannot set headers.
func AuthMiddleware(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		tokenString := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenString = strings.TrimPrefix(header, "Bearer ")
		} else if websocket.IsWebSocketUpgrade(c.Request) {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		farmerID, err := parseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if farmerID != "" {
			c.Set(farmerClaimKey, farmerID)
		}
		c.Next()
	}
}

// authorizeFarmer rejects requests whose token is bound to a different farmer
func authorizeFarmer(c *gin.Context, farmerID string) error {
	claimed := c.GetString(farmerClaimKey)
	if claimed != "" && claimed != farmerID {
		return fmt.Errorf("%w: token is not valid for farmer %s", domain.ErrForbidden, farmerID)
	}
	return nil
}
