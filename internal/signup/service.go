// Package signup implements OTP-confirmed registration, login and logout.
package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/leadscout/internal/apperr"
	"github.com/garnizeh/leadscout/internal/auth"
	"github.com/garnizeh/leadscout/internal/mail"
	"github.com/garnizeh/leadscout/internal/metrics"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/validation"
	"github.com/garnizeh/leadscout/pkg/repository"
)

// ErrInvalidOTP covers both a wrong code and a missing pending registration.
var ErrInvalidOTP = apperr.New(apperr.ErrNotFound, "Invalid OTP.")

// Request is the signup payload.
type Request struct {
	Name             string `json:"name" validate:"required,max=150"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
	MobileNumber     string `json:"mobile_number" validate:"max=32"`
	Country          string `json:"country" validate:"max=64"`
	CompanyName      string `json:"company_name" validate:"max=150"`
	Role             string `json:"role" validate:"omitempty,oneof=client freelancer"`
	LinkedinUsername string `json:"linkedin_username" validate:"max=100"`
}

// Result is returned when a session is opened.
type Result struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type Options struct {
	OTPExpiry time.Duration
	OTPLength int
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type Service struct {
	users   repository.UserRepo
	pending repository.PendingRegistrationRepo
	mailer  mail.Mailer
	tokens  *auth.Issuer
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(users repository.UserRepo, pending repository.PendingRegistrationRepo, mailer mail.Mailer, tokens *auth.Issuer, opts Options) *Service {
	if opts.OTPExpiry <= 0 {
		opts.OTPExpiry = 10 * time.Minute
	}
	if opts.OTPLength <= 0 {
		opts.OTPLength = 6
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, pending: pending, mailer: mailer, tokens: tokens, opts: opts, logger: logger, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) signupData(req Request) (models.SignupData, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return models.SignupData{}, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return models.SignupData{}, apperr.Wrap(apperr.ErrInternal, "Failed to process password.", err)
	}
	role := req.Role
	if role == "" {
		role = "client"
	}
	return models.SignupData{
		Name:             req.Name,
		Email:            req.Email,
		PasswordHash:     hash,
		MobileNumber:     req.MobileNumber,
		Country:          req.Country,
		CompanyName:      req.CompanyName,
		Role:             role,
		LinkedinUsername: req.LinkedinUsername,
	}, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup user %s: %w", email, err)
	}
	if existing != nil {
		return apperr.New(apperr.ErrConflict, "Email already registered.")
	}
	return nil
}

// Initiate validates the payload, stores a pending registration keyed by
// email and mails the code. The record is kept even when mailing fails so a
// resend can recover.
func (s *Service) Initiate(ctx context.Context, req Request) (*models.PendingRegistration, error) {
	data, err := s.signupData(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, data.Email); err != nil {
		return nil, err
	}

	otp, err := generateOTP(s.opts.OTPLength)
	if err != nil {
		return nil, err
	}
	p := &models.PendingRegistration{
		Email:      data.Email,
		OTP:        otp,
		SignupData: data,
		ExpiresAt:  s.now().Add(s.opts.OTPExpiry),
	}
	if err := s.pending.UpsertPendingRegistration(ctx, p); err != nil {
		return nil, fmt.Errorf("store pending registration: %w", err)
	}
	s.opts.Metrics.OTPIssued()

	if err := s.sendOTP(ctx, p.Email, otp); err != nil {
		return nil, err
	}
	s.logger.Info("signup: otp issued", slog.String("email", p.Email), slog.Time("expires_at", p.ExpiresAt))
	return p, nil
}

// Verify consumes the pending registration for email when otp matches and
// has not expired, creating the account and opening a session.
func (s *Service) Verify(ctx context.Context, email, otp string) (*Result, error) {
	email = normalizeEmail(email)
	if email == "" || otp == "" {
		return nil, apperr.New(apperr.ErrValidation, "Email and OTP are required.")
	}

	p, err := s.pending.GetPendingRegistration(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup pending registration: %w", err)
	}
	if p == nil || !otpEqual(p.OTP, otp) {
		return nil, ErrInvalidOTP
	}
	if p.Expired(s.now()) {
		if err := s.pending.DeletePendingRegistration(ctx, email); err != nil {
			s.logger.Warn("signup: failed to delete expired registration", slog.String("email", email), slog.Any("err", err))
		}
		return nil, apperr.New(apperr.ErrExpired, "OTP has expired. Please request a new one.")
	}
	if err := validation.Struct(p.SignupData); err != nil {
		return nil, err
	}

	d := p.SignupData
	u := &models.User{
		Name:             d.Name,
		Email:            d.Email,
		PasswordHash:     d.PasswordHash,
		MobileNumber:     d.MobileNumber,
		Country:          d.Country,
		CompanyName:      d.CompanyName,
		Role:             d.Role,
		LinkedinUsername: d.LinkedinUsername,
		Enabled:          true,
	}
	ok, err := s.pending.CompleteRegistration(ctx, email, p.OTP, u)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.New(apperr.ErrConflict, "Email already registered.")
	}
	if err != nil {
		return nil, fmt.Errorf("complete registration: %w", err)
	}
	if !ok {
		return nil, ErrInvalidOTP
	}
	s.opts.Metrics.SignupVerified()
	s.logger.Info("signup: account created", slog.Int64("user_id", u.ID))

	return s.session(u)
}

// Resend rotates the code and expiry of an existing pending registration.
func (s *Service) Resend(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.New(apperr.ErrValidation, "Email is required.")
	}
	p, err := s.pending.GetPendingRegistration(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup pending registration: %w", err)
	}
	if p == nil {
		return apperr.New(apperr.ErrNotFound, "No pending registration found. Please start signup again.")
	}

	otp, err := generateOTP(s.opts.OTPLength)
	if err != nil {
		return err
	}
	if err := s.pending.UpdatePendingOTP(ctx, email, otp, s.now().Add(s.opts.OTPExpiry)); err != nil {
		return fmt.Errorf("rotate otp: %w", err)
	}
	s.opts.Metrics.OTPIssued()
	return s.sendOTP(ctx, email, otp)
}

// Register creates an account without email confirmation.
func (s *Service) Register(ctx context.Context, req Request) (*Result, error) {
	data, err := s.signupData(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, data.Email); err != nil {
		return nil, err
	}
	u := &models.User{
		Name:             data.Name,
		Email:            data.Email,
		PasswordHash:     data.PasswordHash,
		MobileNumber:     data.MobileNumber,
		Country:          data.Country,
		CompanyName:      data.CompanyName,
		Role:             data.Role,
		LinkedinUsername: data.LinkedinUsername,
		Enabled:          true,
	}
	if _, err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.New(apperr.ErrConflict, "Email already registered.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.session(u)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Result, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		s.opts.Metrics.Login("invalid")
		return nil, apperr.New(apperr.ErrUnauthorized, "Invalid credentials.")
	}
	if !u.Enabled {
		s.opts.Metrics.Login("disabled")
		return nil, apperr.New(apperr.ErrForbidden, "User disabled.")
	}
	s.opts.Metrics.Login("ok")
	return s.session(u)
}

// Logout revokes every token issued to the user so far.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("revoke tokens for user %d: %w", userID, err)
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %d: %w", userID, err)
	}
	if u == nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "User not found.")
	}
	return u, nil
}

func (s *Service) session(u *models.User) (*Result, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "Failed to issue token.", err)
	}
	return &Result{User: u, Token: token}, nil
}

func (s *Service) sendOTP(ctx context.Context, email, otp string) error {
	minutes := int(s.opts.OTPExpiry / time.Minute)
	body := fmt.Sprintf("Your verification code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this email.", otp, minutes)
	if err := s.mailer.Send(ctx, email, "Your LeadScout verification code", body); err != nil {
		s.logger.Error("signup: otp email failed", slog.String("email", email), slog.Any("err", err))
		return apperr.Wrap(apperr.ErrInternal, "Failed to send OTP email. Please try again.", err)
	}
	return nil
}
