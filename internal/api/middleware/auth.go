package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var log = logger.New("auth_middleware")

type AuthMiddleware struct {
	jwtSecret string
	db        *gorm.DB
}

func NewAuthMiddleware(jwtSecret string, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret, db: db}
}

func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			return m.validateJWT(c, tokenParts[1], next)
		}
	}
}

func (m *AuthMiddleware) validateJWT(c echo.Context, tokenString string, next echo.HandlerFunc) error {
	claims, err := utils.ParseJWT(tokenString, m.jwtSecret)
	if err != nil {
		log.Warn("rejecting request with invalid token: %v", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Token has expired")
	}

	// The token must still map to a live profile; identity upstream may have
	// deleted the account after issuing the token.
	profile := &models.Profile{}
	if err := m.db.Where("id = ?", claims.UserID).First(profile).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}

	c.Set("userID", claims.UserID)
	c.Set("email", profile.Email)

	return next(c)
}

// GetUserID Helper functions to get values from context
func GetUserID(c echo.Context) string {
	if id, ok := c.Get("userID").(string); ok {
		return id
	}
	return ""
}

func GetEmail(c echo.Context) string {
	if email, ok := c.Get("email").(string); ok {
		return email
	}
	return ""
}
