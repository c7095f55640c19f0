package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wellness-meal-planner/internal/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *AuthMiddleware
	AuthHandler    *AuthHandler
	MealPlan       *MealPlanHandler
	Profile        *ProfileHandler
	Health         *HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Log), CORS(), cfg.AuthMiddleware.AttachSession())

	// Public
	router.GET("/health", cfg.Health.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/functions/v1/generate-meal-plan", cfg.MealPlan.Generate)
	router.GET("/view-state", cfg.Profile.ViewState)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", cfg.AuthHandler.SignUp)
		authGroup.POST("/signin", cfg.AuthHandler.SignIn)
	}

	// Protected
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	protected.POST("/auth/signout", cfg.AuthHandler.SignOut)
	protected.GET("/profile", cfg.Profile.Get)
	protected.PUT("/profile", cfg.Profile.Put)
	protected.POST("/meal-plan", cfg.MealPlan.GenerateForUser)

	router.NoRoute(func(c *gin.Context) {
		RespondError(c, http.StatusNotFound, "not_found", "Not found")
	})
	return router
}
