package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"wellness-meal-planner/internal/app"
	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/session"
)

type Server struct {
	Engine *gin.Engine
	http   *http.Server
	log    *logger.Logger
}

// Deps are the collaborators the HTTP API is built from.
type Deps struct {
	App          *app.App
	Auth         Authenticator
	Cache        *session.Cache
	DatabasePath string
	Log          *logger.Logger
}

func NewServer(d Deps) *Server {
	cache := d.Cache
	if cache == nil {
		cache = session.NewCache()
	}
	engine := NewRouter(RouterConfig{
		Log:            d.Log,
		AuthMiddleware: NewAuthMiddleware(d.Log, d.Auth, cache),
		AuthHandler:    NewAuthHandler(d.Auth, d.Log),
		MealPlan:       NewMealPlanHandler(d.App, d.Log),
		Profile:        NewProfileHandler(d.App, d.Log),
		Health:         NewHealthHandler(filepath.Dir(d.DatabasePath)),
	})
	return &Server{Engine: engine, log: d.Log}
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to five seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
