package api

import (
	"log/slog"
	"net/http"

	"github.com/garnizeh/leadscout/internal/signup"
)

type AuthHandler struct {
	svc *signup.Service
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(svc *signup.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Initiate stores a pending registration and mails the code.
func (h *AuthHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req signup.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Initiate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"detail":     "OTP sent to your email. Please verify to complete signup.",
		"email":      p.Email,
		"expires_at": p.ExpiresAt,
	}, http.StatusOK)
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Verify(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusCreated)
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Resend(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeDetail(w, http.StatusOK, "A new OTP has been sent to your email.")
}

// Signup creates the account directly, without email confirmation.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signup.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req signup.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

// Logout revokes every token issued to the caller so far.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.Logout(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("user logged out", slog.Int64("user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, u, http.StatusOK)
}
