package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"github.com/lijuniwawanah-jpg/docvault/internal/audit"
	"github.com/lijuniwawanah-jpg/docvault/internal/auth"
	"github.com/lijuniwawanah-jpg/docvault/internal/config"
	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"github.com/lijuniwawanah-jpg/docvault/internal/httpjson"
	"github.com/lijuniwawanah-jpg/docvault/internal/logger"
	"github.com/lijuniwawanah-jpg/docvault/internal/metrics"
)

type AuthHandler struct {
	db             *gorm.DB
	cfg            *config.Config
	sessionManager *scs.SessionManager
	audit          *audit.Recorder
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config, sessionManager *scs.SessionManager, recorder *audit.Recorder) *AuthHandler {
	return &AuthHandler{
		db:             db,
		cfg:            cfg,
		sessionManager: sessionManager,
		audit:          recorder,
	}
}

type SignupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OTPRequest struct {
	Phone string `json:"phone"`
}

type OTPVerifyRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// userBody is the user shape returned by the auth endpoints.
func userBody(u *models.User) map[string]any {
	body := map[string]any{
		"id":        u.ID,
		"public_id": u.PublicID,
		"full_name": u.FullName,
		"role":      u.Role,
		"is_admin":  u.IsAdmin(),
	}
	if u.Email != nil {
		body["email"] = *u.Email
	}
	if u.Phone != nil {
		body["phone"] = *u.Phone
	}
	return body
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.EnableRegistration {
		httpjson.Error(w, http.StatusForbidden, "registration is disabled")
		return
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FullName == "" || req.Email == "" || req.Password == "" {
		httpjson.Error(w, http.StatusBadRequest, "full_name, email and password are required")
		return
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		httpjson.Error(w, http.StatusConflict, "email already registered")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password, h.cfg.BcryptCost)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	publicID, err := auth.GeneratePublicID()
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to generate identifier")
		return
	}

	user := models.User{
		PublicID:     publicID,
		FullName:     req.FullName,
		Email:        &req.Email,
		PasswordHash: &passwordHash,
		Role:         "user",
		StorageQuota: h.cfg.DefaultUserQuota,
	}

	if err := h.db.Create(&user).Error; err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if err := auth.EstablishSession(h.sessionManager, r, user.ID); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.audit.Record(&user.ID, "signup", map[string]string{"email": req.Email})
	httpjson.OK(w, http.StatusCreated, map[string]any{"user": userBody(&user)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Exact email match; trimming or case folding is the client's concern
	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		metrics.RecordLogin(false)
		httpjson.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if user.PasswordHash == nil || !auth.VerifyPassword(*user.PasswordHash, req.Password) {
		metrics.RecordLogin(false)
		httpjson.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := auth.EstablishSession(h.sessionManager, r, user.ID); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	metrics.RecordLogin(true)
	h.audit.Record(&user.ID, "login", map[string]string{"by": "password"})
	httpjson.OK(w, http.StatusOK, map[string]any{"user": userBody(&user)})
}

// Logout revokes whichever credential the request carried: the bearer
// token is deleted, or the server-side session destroyed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.BearerToken(r); token != "" {
		if err := auth.DeleteToken(h.db, token); err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "failed to revoke token")
			return
		}
	} else {
		if err := h.sessionManager.Destroy(r.Context()); err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "failed to destroy session")
			return
		}
	}

	httpjson.OK(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" {
		httpjson.Error(w, http.StatusBadRequest, "phone is required")
		return
	}

	challenge, err := auth.RequestOTP(h.db, req.Phone, h.cfg.OTPTTL)
	if err != nil {
		logger.Error("failed to create otp challenge", "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "failed to create verification code")
		return
	}

	metrics.OTPRequests.Inc()
	h.audit.Record(nil, "request_otp", map[string]string{"phone": req.Phone})

	body := map[string]any{
		"message":    "verification code sent",
		"expires_at": challenge.ExpiresAt,
	}
	// Demo/test deployments only; production delivers the code over SMS
	// and never echoes it.
	if h.cfg.OTPDebugEcho {
		body["otp"] = challenge.Code
	}
	httpjson.OK(w, http.StatusOK, body)
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" || req.OTP == "" {
		httpjson.Error(w, http.StatusBadRequest, "phone and otp are required")
		return
	}

	if err := auth.VerifyOTP(h.db, req.Phone, req.OTP); err != nil {
		metrics.RecordOTPVerification(false)
		switch {
		case errors.Is(err, auth.ErrOTPNotFound):
			httpjson.Error(w, http.StatusNotFound, "no verification code for this phone")
		case errors.Is(err, auth.ErrOTPExpired):
			httpjson.Error(w, http.StatusBadRequest, "verification code expired")
		case errors.Is(err, auth.ErrOTPInvalidCode):
			httpjson.Error(w, http.StatusUnauthorized, "invalid verification code")
		default:
			httpjson.Error(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	user, err := h.findOrCreatePhoneUser(req.Phone)
	if err != nil {
		logger.Error("failed to resolve otp user", "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "failed to resolve account")
		return
	}

	token, err := auth.CreateToken(h.db, user.ID, h.cfg.BearerTokenTTL)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	// Consume only after the token exists; a failed login attempt above
	// leaves the challenge usable for a retry without a fresh request.
	if err := auth.ConsumeOTP(h.db, req.Phone); err != nil {
		logger.Warn("failed to consume otp challenge", "phone", req.Phone, "error", err)
	}

	metrics.RecordOTPVerification(true)
	h.audit.Record(&user.ID, "login", map[string]string{"by": "otp", "phone": req.Phone})
	httpjson.OK(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  userBody(user),
	})
}

// findOrCreatePhoneUser looks a user up by phone, creating a phone-only
// account on first OTP verification.
func (h *AuthHandler) findOrCreatePhoneUser(phone string) (*models.User, error) {
	var user models.User
	err := h.db.Where("phone = ?", phone).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	publicID, err := auth.GeneratePublicID()
	if err != nil {
		return nil, err
	}

	user = models.User{
		PublicID:     publicID,
		Phone:        &phone,
		Role:         "user",
		StorageQuota: h.cfg.DefaultUserQuota,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Me returns the authenticated caller's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	if user == nil {
		httpjson.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	body := userBody(user)
	body["storage_quota"] = user.StorageQuota
	body["storage_used"] = user.StorageUsed
	httpjson.OK(w, http.StatusOK, map[string]any{"user": body})
}
