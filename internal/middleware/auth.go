package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"hrportal/internal/service"
	"hrportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by RequireAuth
const (
	CtxUserID   = "userID"
	CtxUserRole = "userRole"
	CtxUserDept = "userDept"
)

const accessTokenCookie = "access_token"

var errMissingToken = errors.New("authorization is missing")

// ParseToken validates an HS256 access token and returns its claims
func ParseToken(secret []byte, tokenString string) (*service.Claims, error) {
	claims := &service.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// SetTokenCookie stores the access token as an HttpOnly cookie. secure switches to the
// cross-site settings used behind TLS.
func SetTokenCookie(c *gin.Context, accessToken string, ttl time.Duration, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, accessToken, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie
func ClearTokenCookie(c *gin.Context, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
}

func tokenFromRequest(c *gin.Context) (string, error) {
	// Try cookie first, fallback to Authorization header
	if tokenString, err := c.Cookie(accessTokenCookie); err == nil && tokenString != "" {
		return tokenString, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// RequireAuth validates the JWT and, when allowedRoles is non-empty, checks the caller's
// role against it.
func RequireAuth(secret []byte, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		if len(allowedRoles) > 0 && !roleAllowed(claims.Role, allowedRoles) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxUserRole, claims.Role)
		c.Set(CtxUserDept, claims.Dept)

		c.Next()
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Viewer builds the service-level caller from the values RequireAuth stored
func Viewer(c *gin.Context) service.Viewer {
	return service.Viewer{
		UserID:     c.GetString(CtxUserID),
		Role:       c.GetString(CtxUserRole),
		Department: c.GetString(CtxUserDept),
	}
}

// RequireRole restricts a route that already sits behind RequireAuth to the given roles
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxUserRole)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Unauthenticated"))
			return
		}
		if !roleAllowed(role, allowedRoles) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}
		c.Next()
	}
}
