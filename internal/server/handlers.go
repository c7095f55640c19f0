package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wellness-meal-planner/internal/app"
	"wellness-meal-planner/internal/auth"
	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/metrics"
	"wellness-meal-planner/internal/planner"
	"wellness-meal-planner/internal/profile"
)

// MealPlanHandler serves plan generation.
type MealPlanHandler struct {
	app *app.App
	log *logger.Logger
}

func NewMealPlanHandler(a *app.App, log *logger.Logger) *MealPlanHandler {
	return &MealPlanHandler{app: a, log: log.With("handler", "MealPlanHandler")}
}

type generateRequest struct {
	Preferences profile.Preferences `json:"preferences"`
}

type mealPlanResponse struct {
	MealPlan planner.MealPlan `json:"mealPlan"`
	Source   planner.Source   `json:"source"`
	Error    string           `json:"error,omitempty"`
}

// Generate keeps the contract of the hosted function: a plan is always
// in the body, configuration and transport failures answer 500, an
// unusable model reply answers 200 with the fallback.
func (h *MealPlanHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("undecodable generate request", "error", err)
		c.JSON(http.StatusInternalServerError, mealPlanResponse{
			MealPlan: planner.Fallback(),
			Source:   planner.SourceFallback,
			Error:    "Invalid request body",
		})
		return
	}

	h.respond(c, h.app.GenerateMealPlan(c.Request.Context(), req.Preferences))
}

// GenerateForUser generates from the caller's stored profile.
func (h *MealPlanHandler) GenerateForUser(c *gin.Context) {
	res, _, err := h.app.GenerateForUser(c.Request.Context(), sessionFrom(c))
	switch {
	case errors.Is(err, app.ErrNoProfile):
		RespondError(c, http.StatusNotFound, "no_profile", "Complete your preferences first.")
		return
	case err != nil:
		h.log.Error("failed to load profile for generation", "error", err)
		RespondError(c, http.StatusInternalServerError, "persistence_error", "Something went wrong. Please try again.")
		return
	}
	h.respond(c, res)
}

func (h *MealPlanHandler) respond(c *gin.Context, res planner.Result) {
	body := mealPlanResponse{MealPlan: res.Plan, Source: res.Source}
	switch planner.ErrorKind(res.Err) {
	case planner.ErrorKindConfiguration:
		body.Error = "Meal plan service is not configured"
		c.JSON(http.StatusInternalServerError, body)
	case planner.ErrorKindTransport:
		body.Error = "Meal plan service is unavailable"
		c.JSON(http.StatusInternalServerError, body)
	case planner.ErrorKindInvalidResponse:
		body.Error = "Invalid response from meal plan service"
		c.JSON(http.StatusInternalServerError, body)
	default:
		c.JSON(http.StatusOK, body)
	}
}

// AuthHandler exposes sign up, sign in and sign out.
type AuthHandler struct {
	auth Authenticator
	log  *logger.Logger
}

func NewAuthHandler(authenticator Authenticator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{auth: authenticator, log: log.With("handler", "AuthHandler")}
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

func (ah *AuthHandler) SignUp(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", auth.UserMessage(auth.ErrInvalidInput))
		return
	}
	if _, err := ah.auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Name); err != nil {
		ah.authError(c, err)
		return
	}
	token, id, err := ah.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		ah.authError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": id})
}

func (ah *AuthHandler) SignIn(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", auth.UserMessage(auth.ErrInvalidCredentials))
		return
	}
	token, id, err := ah.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		ah.authError(c, err)
		return
	}
	RespondOK(c, gin.H{"token": token, "user": id})
}

func (ah *AuthHandler) SignOut(c *gin.Context) {
	token := c.GetString(tokenKey)
	if err := ah.auth.SignOut(c.Request.Context(), token); err != nil {
		ah.authError(c, err)
		return
	}
	sessionFrom(c).SignOut()
	c.Status(http.StatusNoContent)
}

func (ah *AuthHandler) authError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "auth_error"
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrAlreadyRegistered):
		status, code = http.StatusConflict, "already_registered"
	case errors.Is(err, auth.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_request"
	default:
		ah.log.Error("auth failure", "error", err)
	}
	RespondError(c, status, code, auth.UserMessage(err))
}

// ProfileHandler reads and writes the caller's preferences.
type ProfileHandler struct {
	app *app.App
	log *logger.Logger
}

func NewProfileHandler(a *app.App, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{app: a, log: log.With("handler", "ProfileHandler")}
}

func (ph *ProfileHandler) Get(c *gin.Context) {
	p, err := ph.app.LoadProfile(c.Request.Context(), sessionFrom(c))
	if err != nil {
		ph.log.Error("failed to load profile", "error", err)
		RespondError(c, http.StatusInternalServerError, "persistence_error", "Something went wrong. Please try again.")
		return
	}
	RespondOK(c, p)
}

func (ph *ProfileHandler) Put(c *gin.Context) {
	var prefs profile.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := prefs.Complete(); err != nil {
		RespondError(c, http.StatusBadRequest, "incomplete_preferences", err.Error())
		return
	}
	for _, tag := range prefs.DietType {
		if !profile.IsDietType(tag) {
			RespondError(c, http.StatusBadRequest, "unknown_option", "Unknown diet type: "+tag)
			return
		}
	}
	for _, goal := range prefs.Goals {
		if !profile.IsGoal(goal) {
			RespondError(c, http.StatusBadRequest, "unknown_option", "Unknown goal: "+goal)
			return
		}
	}

	stored, view, err := ph.app.SubmitPreferences(c.Request.Context(), sessionFrom(c), prefs)
	switch {
	case errors.Is(err, app.ErrSubmissionInFlight):
		RespondError(c, http.StatusConflict, "submission_in_flight", "Your preferences are already being saved.")
		return
	case err != nil:
		RespondError(c, http.StatusInternalServerError, "persistence_error", "Something went wrong. Please try again.")
		return
	}
	RespondOK(c, gin.H{"profile": stored, "view": view})
}

func (ph *ProfileHandler) ViewState(c *gin.Context) {
	view, err := ph.app.ViewState(c.Request.Context(), sessionFrom(c))
	if err != nil {
		ph.log.Error("failed to resolve view state", "error", err)
		RespondError(c, http.StatusInternalServerError, "persistence_error", "Something went wrong. Please try again.")
		return
	}
	RespondOK(c, gin.H{"view": view})
}

// HealthHandler reports process health.
type HealthHandler struct {
	dataDir string
}

func NewHealthHandler(dataDir string) *HealthHandler { return &HealthHandler{dataDir: dataDir} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok", "system": metrics.GetSysHealth(h.dataDir)})
}
