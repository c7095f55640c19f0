package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"wellness-meal-planner/internal/auth"
	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/session"
)

const (
	sessionKey = "session"
	tokenKey   = "token"
)

// AllowedHeaders are the request headers browsers may send cross-origin.
var AllowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// CORS answers every origin, like the hosted function endpoint it replaces.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    AllowedHeaders,
		MaxAge:          12 * time.Hour,
	})
}

// RequestLogger logs one line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Authenticator is the part of auth.Service the HTTP layer uses.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, displayName string) (*auth.Identity, error)
	SignIn(ctx context.Context, email, password string) (string, *auth.Identity, error)
	SignOut(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

type AuthMiddleware struct {
	log   *logger.Logger
	auth  Authenticator
	cache *session.Cache
}

func NewAuthMiddleware(log *logger.Logger, authenticator Authenticator, cache *session.Cache) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), auth: authenticator, cache: cache}
}

// AttachSession puts a session on every request. A bad or missing token
// yields an anonymous session.
func (am *AuthMiddleware) AttachSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		var identity *auth.Identity
		if token := extractBearer(c); token != "" {
			id, err := am.auth.Verify(c.Request.Context(), token)
			if err != nil {
				am.log.Debug("ignoring invalid token", "error", err)
			} else {
				identity = id
				c.Set(tokenKey, token)
			}
		}
		c.Set(sessionKey, session.New(identity, am.cache))
		c.Next()
	}
}

// RequireAuth rejects anonymous sessions. It must run after AttachSession.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sessionFrom(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorEnvelope{
				Error: APIError{Message: auth.UserMessage(auth.ErrUnauthenticated), Code: "unauthorized"},
			})
			return
		}
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return session.New(nil, nil)
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
