package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/docsdesk/docsdesk/internal/config"
	"github.com/docsdesk/docsdesk/internal/model"
)

var (
	// ErrValidation marks input rejected by field validation.
	ErrValidation = errors.New("validation error")
	// ErrAlreadyExists is returned when an active user already owns the
	// requested username or email.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned when a registration request does not exist,
	// was deleted, or has already been resolved.
	ErrNotFound = errors.New("registration request not found")
)

// Field limits for registration input.
const (
	MinFieldLength  = 3
	MaxFieldLength  = 50
	MaxReasonLength = 500

	// DefaultStorageQuota is the quota, in bytes, given to approved accounts
	// when none is configured.
	DefaultStorageQuota int64 = 1000000

	// DefaultMailTimeout bounds a single notification delivery.
	DefaultMailTimeout = 10 * time.Second
)

// FieldError describes a single invalid input field. It wraps ErrValidation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// RegistrationService implements the self-service registration workflow:
// public requests, operator review and account creation.
type RegistrationService struct {
	store       *config.Store
	mailer      Mailer
	logger      *slog.Logger
	quota       int64
	siteName    string
	mailTimeout time.Duration
}

// RegistrationOptions configures a RegistrationService.
type RegistrationOptions struct {
	Mailer       Mailer
	Logger       *slog.Logger
	DefaultQuota int64
	SiteName     string
	// MailTimeout caps how long a decision waits on the mailer.
	MailTimeout time.Duration
}

// NewRegistrationService creates the service. Zero options fall back to a
// LogMailer, slog.Default, DefaultStorageQuota and DefaultMailTimeout.
func NewRegistrationService(store *config.Store, opts RegistrationOptions) *RegistrationService {
	svc := &RegistrationService{
		store:       store,
		mailer:      opts.Mailer,
		logger:      opts.Logger,
		quota:       opts.DefaultQuota,
		siteName:    opts.SiteName,
		mailTimeout: opts.MailTimeout,
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.mailer == nil {
		svc.mailer = LogMailer{Logger: svc.logger}
	}
	if svc.quota <= 0 {
		svc.quota = DefaultStorageQuota
	}
	if svc.siteName == "" {
		svc.siteName = "Docs"
	}
	if svc.mailTimeout <= 0 {
		svc.mailTimeout = DefaultMailTimeout
	}
	return svc
}

// Create validates and records a new pending registration request.
func (s *RegistrationService) Create(ctx context.Context, username, email string) (*model.RegistrationRequest, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateLength("username", username, MinFieldLength, MaxFieldLength); err != nil {
		return nil, err
	}
	if err := validateLength("email", email, MinFieldLength, MaxFieldLength); err != nil {
		return nil, err
	}
	if err := validateEmail("email", email); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username %q: %w", username, ErrAlreadyExists)
	} else if !errors.Is(err, config.ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email %q: %w", email, ErrAlreadyExists)
	} else if !errors.Is(err, config.ErrNotFound) {
		return nil, err
	}

	req := &model.RegistrationRequest{Username: username, Email: email}
	if err := s.store.CreateRegistrationRequest(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("registration request created", "id", req.ID, "username", username)
	return req, nil
}

// ListPending returns the active pending requests, newest first.
func (s *RegistrationService) ListPending(ctx context.Context) ([]model.RegistrationRequest, error) {
	return s.store.ListPendingRegistrationRequests(ctx)
}

// Approve accepts a pending request and creates the account. The initial
// password is the username. A notification is mailed after the commit;
// delivery failures are logged and never returned.
func (s *RegistrationService) Approve(ctx context.Context, id, adminID string) (*model.RegistrationRequest, error) {
	req, err := s.store.GetActiveRegistrationRequest(ctx, id)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	hash, err := HashPassword(req.Username)
	if err != nil {
		return nil, err
	}

	resolved, err := s.store.ResolveRegistrationRequest(ctx, id, config.Resolution{
		Status:  model.RegistrationApproved,
		AdminID: adminID,
		NewUser: &model.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         model.DefaultUserRole,
			StorageQuota: s.quota,
		},
	})
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.logger.Info("registration request approved", "id", id, "username", resolved.Username, "admin_id", adminID)
	s.notify(ctx, TemplateRegistrationApproved, resolved)
	return resolved, nil
}

// Reject declines a pending request with an optional reason and mails the
// requester.
func (s *RegistrationService) Reject(ctx context.Context, id, adminID, reason string) (*model.RegistrationRequest, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return nil, &FieldError{Field: "reason", Message: fmt.Sprintf("must be at most %d characters", MaxReasonLength)}
	}

	resolved, err := s.store.ResolveRegistrationRequest(ctx, id, config.Resolution{
		Status:  model.RegistrationRejected,
		Reason:  reason,
		AdminID: adminID,
	})
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.logger.Info("registration request rejected", "id", id, "username", resolved.Username, "admin_id", adminID)
	s.notify(ctx, TemplateRegistrationRejected, resolved)
	return resolved, nil
}

// Delete soft-deletes a request regardless of its status.
func (s *RegistrationService) Delete(ctx context.Context, id, adminID string) error {
	if err := s.store.DeleteRegistrationRequest(ctx, id, adminID); err != nil {
		return s.mapStoreErr(err)
	}
	return nil
}

// notify mails the requester. The decision is already committed, so delivery
// is detached from the caller's cancellation and bounded by mailTimeout.
func (s *RegistrationService) notify(ctx context.Context, tmpl string, req *model.RegistrationRequest) {
	subject, body, err := RenderMail(tmpl, MailData{
		SiteName: s.siteName,
		Username: req.Username,
		Email:    req.Email,
		Reason:   req.Reason,
	})
	if err != nil {
		s.logger.Error("render notification", "template", tmpl, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mailTimeout)
	defer cancel()
	if err := s.mailer.Send(ctx, req.Email, subject, body); err != nil {
		s.logger.Error("send notification", "template", tmpl, "to", req.Email, "error", err)
	}
}

func (s *RegistrationService) mapStoreErr(err error) error {
	if errors.Is(err, config.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func validateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min {
		return &FieldError{Field: field, Message: fmt.Sprintf("must be at least %d characters", min)}
	}
	if n > max {
		return &FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

func validateEmail(field, value string) error {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@")+1:], ".") {
		return &FieldError{Field: field, Message: "must be a valid email address"}
	}
	return nil
}
