package handlers

import (
	"errors"
	"net/http"
	"os"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/n-crespo/theopendissent/backend/internal/authgate"
	"github.com/n-crespo/theopendissent/backend/internal/middleware"
	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/repositories"
)

// AuthHandler handles authentication-related HTTP requests. Every account
// creation and sign-in passes through the email gate first; a gate rejection
// aborts the operation before any account state is touched.
type AuthHandler struct {
	userRepository repositories.UserRepository
	firebaseAuth   *auth.Client
	gate           *authgate.Gate
	jwtSecret      string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userRepo repositories.UserRepository, firebaseAuthClient *auth.Client, gate *authgate.Gate) *AuthHandler {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "supersecretjwtkey"
	}
	return &AuthHandler{
		userRepository: userRepo,
		firebaseAuth:   firebaseAuthClient,
		gate:           gate,
		jwtSecret:      jwtSecret,
	}
}

// RegisterAuthRoutes registers authentication-related routes. Login sits
// behind the Firebase middleware, which verifies the ID token before the
// handler runs.
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login, middleware.FirebaseAuthMiddleware(h.firebaseAuth))
}

// Register creates a new account. The gate runs before the Firebase account
// is created, so a denied email never leaves partial state behind.
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.gate.BeforeCreate(c.Request().Context(), req.Email); err != nil {
		var denied *authgate.ErrEmailNotAllowed
		if errors.As(err, &denied) {
			return echo.NewHTTPError(http.StatusForbidden, denied.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	params := (&auth.UserToCreate{}).
		Email(req.Email).
		Password(req.Password)
	if req.DisplayName != "" {
		params = params.DisplayName(req.DisplayName)
	}

	record, err := h.firebaseAuth.CreateUser(c.Request().Context(), params)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create account")
	}

	profile := models.Profile{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now().UnixMilli(),
	}
	if err := h.userRepository.CreateProfile(record.UID, profile); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create profile")
	}

	token, err := h.generateJWT(record.UID, req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token after registration")
	}

	return c.JSON(http.StatusCreated, echo.Map{"token": token, "uid": record.UID})
}

// Login completes a sign-in. The Firebase middleware has already verified
// the ID token; the gate re-runs here because accounts can lose eligibility
// after creation.
func (h *AuthHandler) Login(c echo.Context) error {
	token, ok := c.Get("firebaseToken").(*auth.Token)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing verified ID token")
	}

	email, _ := token.Claims["email"].(string)
	if err := h.gate.BeforeSignIn(c.Request().Context(), email); err != nil {
		var denied *authgate.ErrEmailNotAllowed
		if errors.As(err, &denied) {
			return echo.NewHTTPError(http.StatusForbidden, denied.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// First sign-in on this backend creates the profile record.
	if _, err := h.userRepository.GetProfile(token.UID); err != nil {
		profile := models.Profile{Email: email, CreatedAt: time.Now().UnixMilli()}
		if name, ok := token.Claims["name"].(string); ok {
			profile.DisplayName = name
		}
		if err := h.userRepository.CreateProfile(token.UID, profile); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create profile")
		}
	}

	localJWT, err := h.generateJWT(token.UID, email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": localJWT, "uid": token.UID})
}

// generateJWT generates a JWT token for a given user
func (h *AuthHandler) generateJWT(uid, email string) (string, error) {
	claims := &models.JwtCustomClaims{
		UID:   uid,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		return "", err
	}
	return t, nil
}
