// Package account manages Badgr users and the email addresses registered to them.
package account

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/logger"
	"github.com/badgrhq/badgr-server/badgr/validate"
)

// Client-facing messages for rejected email changes.
const (
	MsgRemovePrimary = "Can not remove primary email address"
	MsgRemoveOnly    = "Can not remove only email address"
	MsgEmailInUse    = "Email address is already in use"
)

// RegisterInput is the payload for creating a user.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,max=30,username"`
	FirstName string `json:"first_name" validate:"max=30"`
	LastName  string `json:"last_name" validate:"max=30"`
	Email     string `json:"email" validate:"required,email"`
}

// EmailInput is the payload for registering an additional address.
type EmailInput struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdateEmailInput carries the PUT flags for an address.
type UpdateEmailInput struct {
	Primary bool `json:"primary"`
	Resend  bool `json:"resend"`
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Users   badgr.UserRepository
	Badges  badgr.BadgeRepository
	Mailer  badgr.Mailer
	Pool    badgr.WorkerPool
	BaseURL string
	Logger  badgr.Logger
}

// Service implements account and email operations.
type Service struct {
	users   badgr.UserRepository
	badges  badgr.BadgeRepository
	mailer  badgr.Mailer
	pool    badgr.WorkerPool
	baseURL string
	logger  badgr.Logger
}

// NewService creates an account service.
func NewService(opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Service{
		users:   opts.Users,
		badges:  opts.Badges,
		mailer:  opts.Mailer,
		pool:    opts.Pool,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  opts.Logger,
	}
}

// Register creates a user with a primary, unverified address and sends a
// confirmation message to it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*badgr.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, in.Email); err != nil {
		return nil, err
	}

	user := &badgr.User{Username: in.Username, FirstName: in.FirstName, LastName: in.LastName}
	email := &badgr.EmailAddress{Email: strings.TrimSpace(in.Email), Primary: true}
	if err := s.users.CreateUserWithEmail(ctx, user, email); err != nil {
		var resErr *badgr.ResourceError
		if errors.Is(err, badgr.ErrDuplicate) && errors.As(err, &resErr) {
			if resErr.Resource == "email" {
				return nil, badgr.NewValidationError("email: %s", MsgEmailInUse)
			}
			return nil, badgr.NewValidationError("username: A user with that username already exists.")
		}
		return nil, err
	}
	s.sendConfirmation(ctx, email)
	s.logger.Info("user registered", "user", user.EntityID)
	return user, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id uint) (*badgr.User, error) {
	return s.users.GetUser(ctx, id)
}

// ListEmails returns the addresses of userID, primary first.
func (s *Service) ListEmails(ctx context.Context, userID uint) ([]*badgr.EmailAddress, error) {
	return s.users.ListEmails(ctx, userID)
}

// AddEmail registers a new unverified address and sends a confirmation.
func (s *Service) AddEmail(ctx context.Context, userID uint, in EmailInput) (*badgr.EmailAddress, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, in.Email); err != nil {
		return nil, err
	}
	email := &badgr.EmailAddress{UserID: userID, Email: strings.TrimSpace(in.Email)}
	if err := s.users.CreateEmail(ctx, email); err != nil {
		if errors.Is(err, badgr.ErrDuplicate) {
			return nil, badgr.NewValidationError("email: %s", MsgEmailInUse)
		}
		return nil, err
	}
	s.sendConfirmation(ctx, email)
	return email, nil
}

// GetEmail returns an address owned by userID.
func (s *Service) GetEmail(ctx context.Context, userID, id uint) (*badgr.EmailAddress, error) {
	email, err := s.users.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	if email.UserID != userID {
		return nil, badgr.NewForbiddenError("email", strconv.FormatUint(uint64(id), 10))
	}
	return email, nil
}

// DeleteEmail removes an address. The primary address and the only
// address of a user cannot be removed.
func (s *Service) DeleteEmail(ctx context.Context, userID, id uint) error {
	email, err := s.GetEmail(ctx, userID, id)
	if err != nil {
		return err
	}
	if email.Primary {
		return badgr.NewValidationError(MsgRemovePrimary)
	}
	count, err := s.users.CountEmails(ctx, userID)
	if err != nil {
		return err
	}
	if count == 1 {
		return badgr.NewValidationError(MsgRemoveOnly)
	}
	if err := s.users.DeleteEmail(ctx, id); err != nil {
		return err
	}
	s.logger.Info("email removed", "user", userID, "email", id)
	return nil
}

// UpdateEmail makes a verified address primary, or resends the
// confirmation of an unverified one. Other combinations are no-ops.
func (s *Service) UpdateEmail(ctx context.Context, userID, id uint, in UpdateEmailInput) (*badgr.EmailAddress, error) {
	email, err := s.GetEmail(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if email.Verified {
		if in.Primary {
			if err := s.users.SetPrimaryEmail(ctx, userID, email.ID); err != nil {
				return nil, err
			}
			email.Primary = true
		}
	} else if in.Resend {
		s.sendConfirmation(ctx, email)
	}
	return email, nil
}

// VerifyEmail marks an address verified and schedules variant processing.
func (s *Service) VerifyEmail(ctx context.Context, userID, id uint) (*badgr.EmailAddress, error) {
	email, err := s.GetEmail(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !email.Verified {
		email.Verified = true
		if err := s.users.UpdateEmail(ctx, email); err != nil {
			return nil, err
		}
	}

	taskCtx := context.WithoutCancel(ctx)
	emailID := email.ID
	if err := s.pool.Submit(func() {
		if err := s.ProcessEmailVerification(taskCtx, emailID); err != nil {
			s.logger.Error("email verification processing failed", "email", emailID, "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule verification processing: %w", err)
	}
	return email, nil
}

// ProcessEmailVerification records as variants the alternate casings of
// a verified address that badges have been issued to. A missing address
// is not an error.
func (s *Service) ProcessEmailVerification(ctx context.Context, emailID uint) error {
	email, err := s.users.GetEmail(ctx, emailID)
	if err != nil {
		if errors.Is(err, badgr.ErrNotFound) {
			return nil
		}
		return err
	}

	instances, err := s.badges.FindBadgeInstancesByRecipient(ctx, email.Email)
	if err != nil {
		return err
	}

	variants := append([]string(nil), email.Variants...)
	for _, instance := range instances {
		identifier := instance.RecipientIdentifier
		if identifier == email.Email || slices.Contains(variants, identifier) {
			continue
		}
		ok, err := s.canAddVariant(ctx, email, identifier)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.users.AddEmailVariant(ctx, email.ID, identifier); err != nil {
			return err
		}
		variants = append(variants, identifier)
		s.logger.Debug("email variant added", "email", email.ID, "variant", identifier)
	}
	return nil
}

// canAddVariant reports whether identifier is a differently cased form of
// email that is not itself registered as an address.
func (s *Service) canAddVariant(ctx context.Context, email *badgr.EmailAddress, identifier string) (bool, error) {
	if !strings.EqualFold(identifier, email.Email) {
		return false, nil
	}
	existing, err := s.users.FindEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, badgr.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return existing.Email != identifier, nil
}

func (s *Service) ensureEmailAvailable(ctx context.Context, address string) error {
	_, err := s.users.FindEmail(ctx, address)
	switch {
	case err == nil:
		return badgr.NewValidationError("email: %s", MsgEmailInUse)
	case errors.Is(err, badgr.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) sendConfirmation(ctx context.Context, email *badgr.EmailAddress) {
	if s.mailer == nil {
		return
	}
	link := fmt.Sprintf("%s/v1/user/emails/%d/verify", s.baseURL, email.ID)
	msg := badgr.Message{
		To:      email.Email,
		Subject: "Confirm your email address",
		Body:    "Please confirm that you registered this address with Badgr:\n\n" + link + "\n",
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("confirmation email failed", "email", email.ID, "error", err)
	}
}
