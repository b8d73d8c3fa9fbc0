// Package issuer manages issuers, their badge classes and awarded assertions.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/imageutil"
	"github.com/badgrhq/badgr-server/badgr/logger"
	"github.com/badgrhq/badgr-server/badgr/openbadges"
	"github.com/badgrhq/badgr-server/badgr/validate"
	"github.com/google/uuid"
)

// IssuerInput is the payload for creating an issuer.
type IssuerInput struct {
	Name        string `json:"name" validate:"required,max=1024"`
	URL         string `json:"url" validate:"omitempty,url"`
	Email       string `json:"email" validate:"omitempty,email"`
	Description string `json:"description" validate:"max=16384"`
}

// AlignmentInput is one alignment of a badge class.
type AlignmentInput struct {
	TargetName        string `json:"target_name" validate:"required,max=1024"`
	TargetURL         string `json:"target_url" validate:"required,url,max=2083"`
	TargetDescription string `json:"target_description"`
	TargetFramework   string `json:"target_framework"`
	TargetCode        string `json:"target_code"`
}

// BadgeClassInput is the payload for creating a badge class.
type BadgeClassInput struct {
	Name         string           `json:"name" validate:"required,max=255"`
	Description  string           `json:"description" validate:"max=16384"`
	CriteriaURL  string           `json:"criteria_url" validate:"omitempty,url"`
	CriteriaText string           `json:"criteria_text"`
	Alignments   []AlignmentInput `json:"alignments" validate:"dive"`
	Image        io.Reader        `json:"-"`
}

// EvidenceInput is one evidence item of an assertion.
type EvidenceInput struct {
	EvidenceURL string `json:"evidence_url" validate:"omitempty,url"`
	Narrative   string `json:"narrative"`
}

// AssertionInput is the payload for awarding a badge class.
// Email is the 1.1 name of RecipientIdentifier and is used when the latter is empty.
// Evidence accepts the 1.1 single URL form; EvidenceItems the 2.0 list form.
// Recipients are hashed unless Hashed is explicitly false.
type AssertionInput struct {
	RecipientIdentifier string          `json:"recipient_identifier" validate:"required,max=768"`
	Email               string          `json:"email"`
	RecipientType       string          `json:"recipient_type" validate:"omitempty,oneof=email url telephone"`
	Evidence            string          `json:"evidence" validate:"omitempty,url"`
	EvidenceItems       []EvidenceInput `json:"evidence_items" validate:"dive"`
	Narrative           string          `json:"narrative"`
	IssuedOn            *time.Time      `json:"issued_on"`
	Expires             *time.Time      `json:"expires"`
	Hashed              *bool           `json:"hashed"`
	CreateNotification  bool            `json:"create_notification"`
}

// MaxBatchSize bounds the number of assertions issued by one batch request.
const MaxBatchSize = 100

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Badges    badgr.BadgeRepository
	Mailer    badgr.Mailer
	URLs      openbadges.URLs
	ImageSize int
	Logger    badgr.Logger
}

// Service implements issuer operations on top of a BadgeRepository.
type Service struct {
	badges    badgr.BadgeRepository
	mailer    badgr.Mailer
	urls      openbadges.URLs
	imageSize int
	logger    badgr.Logger
	now       func() time.Time
}

// NewService creates an issuer service.
func NewService(opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Service{
		badges:    opts.Badges,
		mailer:    opts.Mailer,
		urls:      opts.URLs,
		imageSize: opts.ImageSize,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// URLs returns the public URL builder used for documents.
func (s *Service) URLs() openbadges.URLs {
	return s.urls
}

// CreateIssuer creates an issuer owned by ownerID.
func (s *Service) CreateIssuer(ctx context.Context, ownerID uint, in IssuerInput) (*badgr.Issuer, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	issuer := &badgr.Issuer{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		URL:         in.URL,
		Email:       in.Email,
		Description: in.Description,
	}
	if err := s.badges.CreateIssuer(ctx, issuer); err != nil {
		return nil, err
	}
	s.logger.Info("issuer created", "issuer", issuer.EntityID, "owner", ownerID)
	return issuer, nil
}

// CreateBadgeClass creates a badge class under an issuer owned by ownerID.
// Raster images are normalized to a square PNG; SVG images are kept as uploaded.
func (s *Service) CreateBadgeClass(ctx context.Context, ownerID uint, issuerSlug string, in BadgeClassInput) (*badgr.BadgeClass, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.CriteriaURL == "" && strings.TrimSpace(in.CriteriaText) == "" {
		return nil, badgr.NewValidationError("criteria: One or both of criteria_text and criteria_url is required.")
	}
	if in.Image == nil {
		return nil, badgr.NewValidationError("image: This field is required.")
	}

	issuer, err := s.ownedIssuer(ctx, ownerID, issuerSlug)
	if err != nil {
		return nil, err
	}

	image, imageType, err := imageutil.Normalize(in.Image, s.imageSize)
	if err != nil {
		switch {
		case errors.Is(err, imageutil.ErrImageTooLarge):
			return nil, badgr.NewValidationError("image: Image is too large.")
		case errors.Is(err, imageutil.ErrUnsupportedImage):
			return nil, badgr.NewValidationError("image: Upload a valid PNG, JPEG or SVG image.")
		}
		return nil, err
	}

	class := &badgr.BadgeClass{
		IssuerID:     issuer.ID,
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		CriteriaURL:  in.CriteriaURL,
		CriteriaText: in.CriteriaText,
		Image:        image,
		ImageType:    imageType,
	}
	for _, a := range in.Alignments {
		class.Alignments = append(class.Alignments, badgr.Alignment{
			TargetName:        a.TargetName,
			TargetURL:         a.TargetURL,
			TargetDescription: a.TargetDescription,
			TargetFramework:   a.TargetFramework,
			TargetCode:        a.TargetCode,
		})
	}
	if err := s.badges.CreateBadgeClass(ctx, class); err != nil {
		return nil, err
	}
	s.logger.Info("badge class created", "issuer", issuer.EntityID, "badgeclass", class.EntityID)
	return class, nil
}

// IssueAssertion awards a badge class to a recipient.
func (s *Service) IssueAssertion(ctx context.Context, ownerID uint, issuerSlug, badgeSlug string, in AssertionInput) (*badgr.BadgeInstance, error) {
	instance, err := s.prepareAssertion(in)
	if err != nil {
		return nil, err
	}

	issuer, class, err := s.ownedBadgeClass(ctx, ownerID, issuerSlug, badgeSlug)
	if err != nil {
		return nil, err
	}
	instance.BadgeClassID = class.ID
	instance.IssuerID = issuer.ID

	if err := s.badges.CreateBadgeInstance(ctx, instance); err != nil {
		return nil, err
	}
	s.logger.Info("assertion issued", "badgeclass", class.EntityID, "assertion", instance.EntityID)

	if in.CreateNotification && instance.RecipientType == badgr.RecipientTypeEmail {
		s.notify(ctx, instance, class, issuer)
	}
	return instance, nil
}

// IssueAssertions awards a badge class to several recipients at once.
// Every input is validated before anything is stored, and the assertions
// are stored together or not at all.
func (s *Service) IssueAssertions(ctx context.Context, ownerID uint, badgeSlug string, inputs []AssertionInput, createNotification bool) ([]*badgr.BadgeInstance, error) {
	if len(inputs) == 0 {
		return nil, badgr.NewValidationError("assertions: This field is required.")
	}
	if len(inputs) > MaxBatchSize {
		return nil, badgr.NewValidationError("assertions: Ensure this field has no more than %d elements.", MaxBatchSize)
	}

	instances := make([]*badgr.BadgeInstance, 0, len(inputs))
	for i, in := range inputs {
		instance, err := s.prepareAssertion(in)
		if err != nil {
			var validation *badgr.ValidationError
			if errors.As(err, &validation) {
				return nil, badgr.NewValidationError("assertions[%d]: %s", i, validation.Message)
			}
			return nil, err
		}
		instances = append(instances, instance)
	}

	class, err := s.badges.GetBadgeClassByEntityID(ctx, badgeSlug)
	if err != nil {
		return nil, err
	}
	issuer, err := s.badges.GetIssuer(ctx, class.IssuerID)
	if err != nil {
		return nil, err
	}
	if issuer.OwnerID != ownerID {
		return nil, badgr.NewForbiddenError("badgeclass", badgeSlug)
	}
	for _, instance := range instances {
		instance.BadgeClassID = class.ID
		instance.IssuerID = issuer.ID
	}

	if err := s.badges.CreateBadgeInstances(ctx, instances); err != nil {
		return nil, err
	}
	s.logger.Info("assertions issued", "badgeclass", class.EntityID, "count", len(instances))

	if createNotification {
		for _, instance := range instances {
			if instance.RecipientType == badgr.RecipientTypeEmail {
				s.notify(ctx, instance, class, issuer)
			}
		}
	}
	return instances, nil
}

// prepareAssertion validates in and builds the unsaved instance.
func (s *Service) prepareAssertion(in AssertionInput) (*badgr.BadgeInstance, error) {
	if strings.TrimSpace(in.RecipientIdentifier) == "" {
		in.RecipientIdentifier = in.Email
	}
	in.RecipientIdentifier = strings.TrimSpace(in.RecipientIdentifier)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	recipientType := in.RecipientType
	if recipientType == "" {
		recipientType = badgr.RecipientTypeEmail
	}
	if recipientType == badgr.RecipientTypeEmail && !validate.Email(in.RecipientIdentifier) {
		return nil, badgr.NewValidationError("recipient_identifier: Enter a valid email address.")
	}
	evidence, err := normalizeEvidence(in)
	if err != nil {
		return nil, err
	}

	issuedOn := s.now().UTC()
	if in.IssuedOn != nil {
		issuedOn = in.IssuedOn.UTC()
	}
	hashed := in.Hashed == nil || *in.Hashed
	instance := &badgr.BadgeInstance{
		RecipientIdentifier: in.RecipientIdentifier,
		RecipientType:       recipientType,
		Hashed:              hashed,
		IssuedOn:            issuedOn,
		Expires:             in.Expires,
		Narrative:           in.Narrative,
		Evidence:            evidence,
	}
	if hashed {
		instance.Salt = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return instance, nil
}

// ListAssertions returns the assertions of a badge class owned by ownerID.
func (s *Service) ListAssertions(ctx context.Context, ownerID uint, issuerSlug, badgeSlug string) ([]*badgr.BadgeInstance, error) {
	_, class, err := s.ownedBadgeClass(ctx, ownerID, issuerSlug, badgeSlug)
	if err != nil {
		return nil, err
	}
	return s.badges.ListBadgeInstancesByClass(ctx, class.ID)
}

// RevokeAssertion revokes an assertion. A revocation reason is required.
func (s *Service) RevokeAssertion(ctx context.Context, ownerID uint, issuerSlug, badgeSlug, slug, reason string) (*badgr.BadgeInstance, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, badgr.NewValidationError("revocation_reason: This field is required.")
	}
	_, class, err := s.ownedBadgeClass(ctx, ownerID, issuerSlug, badgeSlug)
	if err != nil {
		return nil, err
	}
	instance, err := s.badges.GetBadgeInstanceByEntityID(ctx, slug)
	if err != nil {
		return nil, err
	}
	if instance.BadgeClassID != class.ID {
		return nil, badgr.NewNotFoundError("assertion", slug)
	}
	if instance.Revoked {
		return nil, badgr.NewValidationError("Assertion is already revoked.")
	}
	instance.Revoked = true
	instance.RevocationReason = reason
	if err := s.badges.UpdateBadgeInstance(ctx, instance); err != nil {
		return nil, err
	}
	s.logger.Info("assertion revoked", "assertion", slug)
	return instance, nil
}

// GetAssertion returns a public assertion with its badge class.
func (s *Service) GetAssertion(ctx context.Context, slug string) (*badgr.BadgeInstance, *badgr.BadgeClass, error) {
	instance, err := s.badges.GetBadgeInstanceByEntityID(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	class, err := s.badges.GetBadgeClass(ctx, instance.BadgeClassID)
	if err != nil {
		return nil, nil, err
	}
	return instance, class, nil
}

// GetBadgeClass returns a public badge class with its issuer.
func (s *Service) GetBadgeClass(ctx context.Context, slug string) (*badgr.BadgeClass, *badgr.Issuer, error) {
	class, err := s.badges.GetBadgeClassByEntityID(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	issuer, err := s.badges.GetIssuer(ctx, class.IssuerID)
	if err != nil {
		return nil, nil, err
	}
	return class, issuer, nil
}

// GetIssuer returns a public issuer.
func (s *Service) GetIssuer(ctx context.Context, slug string) (*badgr.Issuer, error) {
	return s.badges.GetIssuerByEntityID(ctx, slug)
}

func (s *Service) ownedIssuer(ctx context.Context, ownerID uint, slug string) (*badgr.Issuer, error) {
	issuer, err := s.badges.GetIssuerByEntityID(ctx, slug)
	if err != nil {
		return nil, err
	}
	if issuer.OwnerID != ownerID {
		return nil, badgr.NewForbiddenError("issuer", slug)
	}
	return issuer, nil
}

func (s *Service) ownedBadgeClass(ctx context.Context, ownerID uint, issuerSlug, badgeSlug string) (*badgr.Issuer, *badgr.BadgeClass, error) {
	issuer, err := s.ownedIssuer(ctx, ownerID, issuerSlug)
	if err != nil {
		return nil, nil, err
	}
	class, err := s.badges.GetBadgeClassByEntityID(ctx, badgeSlug)
	if err != nil {
		return nil, nil, err
	}
	if class.IssuerID != issuer.ID {
		return nil, nil, badgr.NewNotFoundError("badgeclass", badgeSlug)
	}
	return issuer, class, nil
}

func (s *Service) notify(ctx context.Context, instance *badgr.BadgeInstance, class *badgr.BadgeClass, issuer *badgr.Issuer) {
	if s.mailer == nil {
		return
	}
	msg := badgr.Message{
		To:      instance.RecipientIdentifier,
		Subject: fmt.Sprintf("Congratulations, you earned %s!", class.Name),
		Body: fmt.Sprintf("%s has awarded you the badge %q.\n\nView it at %s\n",
			issuer.Name, class.Name, s.urls.Assertion(instance.EntityID)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("award notification failed", "assertion", instance.EntityID, "error", err)
	}
}

func normalizeEvidence(in AssertionInput) ([]badgr.EvidenceItem, error) {
	var items []badgr.EvidenceItem
	if in.Evidence != "" {
		items = append(items, badgr.EvidenceItem{EvidenceURL: in.Evidence})
	}
	for _, item := range in.EvidenceItems {
		if item.EvidenceURL == "" && strings.TrimSpace(item.Narrative) == "" {
			return nil, badgr.NewValidationError("evidence_items: Each evidence item requires an evidence_url or a narrative.")
		}
		items = append(items, badgr.EvidenceItem{EvidenceURL: item.EvidenceURL, Narrative: item.Narrative})
	}
	return items, nil
}
