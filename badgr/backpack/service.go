// Package backpack serves an earner's own badges, including sharing them to
// social providers.
package backpack

import (
	"context"
	"fmt"
	"strings"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/logger"
	"github.com/badgrhq/badgr-server/badgr/openbadges"
	"github.com/badgrhq/badgr-server/badgr/sharing"
)

// Client-facing messages for rejected share requests.
const (
	MsgProviderUnspecified = "unspecified share provider"
	MsgProviderInvalid     = "invalid share provider"
)

// DefaultSource is recorded when a share request names no source.
const DefaultSource = "unknown"

// ShareRequest describes one share of a badge instance.
type ShareRequest struct {
	Provider string
	Source   string
	Title    string
	Summary  string
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Dispatcher *sharing.Dispatcher
	Users      badgr.UserRepository
	Badges     badgr.BadgeRepository
	Shares     badgr.ShareRepository
	URLs       openbadges.URLs
	Logger     badgr.Logger
}

// Service resolves an earner's badges and builds share links for them.
type Service struct {
	dispatcher *sharing.Dispatcher
	users      badgr.UserRepository
	badges     badgr.BadgeRepository
	shares     badgr.ShareRepository
	urls       openbadges.URLs
	logger     badgr.Logger
}

// NewService creates a backpack service.
func NewService(opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Service{
		dispatcher: opts.Dispatcher,
		users:      opts.Users,
		badges:     opts.Badges,
		shares:     opts.Shares,
		urls:       opts.URLs,
		logger:     opts.Logger,
	}
}

// Providers lists the enabled share providers.
func (s *Service) Providers() []sharing.ProviderRegistration {
	return s.dispatcher.Providers()
}

// Share records a share of the caller's badge instance and returns the
// provider URL to send the earner to.
func (s *Service) Share(ctx context.Context, userID uint, slug string, req ShareRequest) (string, error) {
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		return "", badgr.NewValidationError(MsgProviderUnspecified)
	}
	if !s.dispatcher.IsSupported(provider) {
		return "", badgr.NewValidationError(MsgProviderInvalid)
	}

	instance, err := s.ownedInstance(ctx, userID, slug)
	if err != nil {
		return "", err
	}
	class, err := s.badges.GetBadgeClass(ctx, instance.BadgeClassID)
	if err != nil {
		return "", err
	}

	target := sharing.ShareTarget{
		ShareURL:       s.urls.Assertion(instance.EntityID),
		BadgeClassName: class.Name,
	}
	shareURL, err := s.dispatcher.BuildShareURL(provider, target, sharing.Options{Title: req.Title, Summary: req.Summary})
	if err != nil {
		return "", fmt.Errorf("build share url: %w", err)
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = DefaultSource
	}
	share := &badgr.BadgeShare{
		Provider:        strings.ToLower(provider),
		BadgeInstanceID: instance.ID,
		Source:          source,
	}
	if err := s.shares.CreateShare(ctx, share); err != nil {
		return "", err
	}
	s.logger.Info("badge shared", "assertion", instance.EntityID, "provider", share.Provider, "source", source)
	return shareURL, nil
}

// ownedInstance returns the instance when it was issued to one of the
// user's addresses or their recorded variants. Other instances are
// reported as not found.
func (s *Service) ownedInstance(ctx context.Context, userID uint, slug string) (*badgr.BadgeInstance, error) {
	instance, err := s.badges.GetBadgeInstanceByEntityID(ctx, slug)
	if err != nil {
		return nil, err
	}
	emails, err := s.users.ListEmails(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, email := range emails {
		if strings.EqualFold(email.Email, instance.RecipientIdentifier) || email.HasVariant(instance.RecipientIdentifier) {
			return instance, nil
		}
	}
	return nil, badgr.NewNotFoundError("assertion", slug)
}
