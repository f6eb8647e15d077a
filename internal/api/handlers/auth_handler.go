package handlers

import (
	"net/http"
	"strings"

	"yearn-vaults/internal/api/auth"
	"yearn-vaults/internal/api/middleware"
	"yearn-vaults/internal/logger"
)

// AuthHandler обробляє authentication запити
type AuthHandler struct {
	credentials auth.Credentials
	jwtManager  *auth.JWTManager
	log         *logger.Logger
}

func NewAuthHandler(credentials auth.Credentials, jwtManager *auth.JWTManager, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{credentials: credentials, jwtManager: jwtManager, log: log}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // seconds
	Username  string `json:"username"`
}

// Login аутентифікує адміністратора
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if err := h.credentials.Verify(req.Username, req.Password); err != nil {
		h.log.Warn("⚠️ Failed login attempt for user: %s from %s", req.Username, middleware.ClientIP(r))
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwtManager.GenerateToken(req.Username)
	if err != nil {
		h.log.Error("❌ Failed to generate token: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.log.Info("✅ Admin logged in: %s", req.Username)
	respondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtManager.TokenDuration().Seconds()),
		Username:  req.Username,
	})
}

func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	tokenString, err := auth.ExtractTokenFromBearer(r.Header.Get("Authorization"))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Missing or invalid token")
		return
	}

	token, err := h.jwtManager.RefreshToken(tokenString)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": int64(h.jwtManager.TokenDuration().Seconds()),
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetAdminFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"username":   claims.Username,
		"expires_at": claims.ExpiresAt.Time,
	})
}
