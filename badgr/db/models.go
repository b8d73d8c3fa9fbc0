package db

import (
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"gorm.io/gorm"
)

// UserModel mirrors the badge_users schema.
type UserModel struct {
	gorm.Model
	EntityID  string `gorm:"uniqueIndex;not null"`
	Username  string `gorm:"uniqueIndex;size:30;not null"`
	FirstName string
	LastName  string
}

func (UserModel) TableName() string {
	return "badge_users"
}

// EmailAddressModel stores addresses registered to users.
type EmailAddressModel struct {
	gorm.Model
	UserID   uint                `gorm:"index;not null"`
	Email    string              `gorm:"uniqueIndex;not null"`
	Verified bool                `gorm:"not null;default:false"`
	Primary  bool                `gorm:"not null;default:false"`
	Variants []EmailVariantModel `gorm:"foreignKey:EmailAddressID;constraint:OnDelete:CASCADE"`
}

func (EmailAddressModel) TableName() string {
	return "email_addresses"
}

// EmailVariantModel stores an alternate casing of an email address.
type EmailVariantModel struct {
	ID             uint   `gorm:"primaryKey"`
	EmailAddressID uint   `gorm:"index;not null"`
	Email          string `gorm:"uniqueIndex;not null"`
	CreatedAt      time.Time
}

func (EmailVariantModel) TableName() string {
	return "email_address_variants"
}

// IssuerModel stores issuers.
type IssuerModel struct {
	gorm.Model
	EntityID    string `gorm:"uniqueIndex;not null"`
	OwnerID     uint   `gorm:"index;not null"`
	Name        string `gorm:"not null"`
	URL         string
	Email       string
	Description string
	Image       []byte
}

func (IssuerModel) TableName() string {
	return "issuers"
}

// BadgeClassModel stores badge class definitions.
type BadgeClassModel struct {
	gorm.Model
	EntityID     string `gorm:"uniqueIndex;not null"`
	IssuerID     uint   `gorm:"index;not null"`
	Name         string `gorm:"not null"`
	Description  string
	CriteriaURL  string
	CriteriaText string
	Image        []byte
	ImageType    string                     `gorm:"not null;default:'image/png'"`
	Alignments   []BadgeClassAlignmentModel `gorm:"foreignKey:BadgeClassID;constraint:OnDelete:CASCADE"`
}

func (BadgeClassModel) TableName() string {
	return "badge_classes"
}

// BadgeClassAlignmentModel stores alignment objects of a badge class.
type BadgeClassAlignmentModel struct {
	ID                uint `gorm:"primaryKey"`
	BadgeClassID      uint `gorm:"index;not null"`
	OriginalJSON      *string
	TargetName        string `gorm:"not null"`
	TargetURL         string `gorm:"size:2083;not null"`
	TargetDescription *string
	TargetFramework   *string
	TargetCode        *string
}

func (BadgeClassAlignmentModel) TableName() string {
	return "badge_class_alignments"
}

// BadgeInstanceModel stores awarded assertions.
type BadgeInstanceModel struct {
	gorm.Model
	EntityID            string `gorm:"uniqueIndex;not null"`
	BadgeClassID        uint   `gorm:"index;not null"`
	IssuerID            uint   `gorm:"index;not null"`
	RecipientIdentifier string `gorm:"index;not null"`
	RecipientType       string `gorm:"not null;default:'email'"`
	Hashed              bool   `gorm:"not null;default:false"`
	Salt                string
	IssuedOn            time.Time
	Expires             *time.Time
	Revoked             bool `gorm:"not null;default:false"`
	RevocationReason    string
	Narrative           string
	Evidence            []BadgeInstanceEvidenceModel `gorm:"foreignKey:BadgeInstanceID;constraint:OnDelete:CASCADE"`
}

func (BadgeInstanceModel) TableName() string {
	return "badge_instances"
}

// BadgeInstanceEvidenceModel stores evidence items of an assertion.
type BadgeInstanceEvidenceModel struct {
	ID              uint `gorm:"primaryKey"`
	BadgeInstanceID uint `gorm:"index;not null"`
	Position        int  `gorm:"not null;default:0"`
	EvidenceURL     string
	Narrative       string
}

func (BadgeInstanceEvidenceModel) TableName() string {
	return "badge_instance_evidence"
}

// BadgeShareModel records outbound shares.
type BadgeShareModel struct {
	ID              uint `gorm:"primaryKey"`
	CreatedAt       time.Time
	Provider        string `gorm:"index;not null"`
	BadgeInstanceID uint   `gorm:"index;not null"`
	Source          string `gorm:"not null;default:'unknown'"`
}

func (BadgeShareModel) TableName() string {
	return "backpack_badge_shares"
}

func userToInternal(model UserModel) *badgr.User {
	return &badgr.User{
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		EntityID:  model.EntityID,
		Username:  model.Username,
		FirstName: model.FirstName,
		LastName:  model.LastName,
	}
}

func emailToInternal(model EmailAddressModel) *badgr.EmailAddress {
	variants := make([]string, 0, len(model.Variants))
	for _, v := range model.Variants {
		variants = append(variants, v.Email)
	}
	return &badgr.EmailAddress{
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		UserID:    model.UserID,
		Email:     model.Email,
		Verified:  model.Verified,
		Primary:   model.Primary,
		Variants:  variants,
	}
}

func issuerToInternal(model IssuerModel) *badgr.Issuer {
	return &badgr.Issuer{
		ID:          model.ID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		EntityID:    model.EntityID,
		OwnerID:     model.OwnerID,
		Name:        model.Name,
		URL:         model.URL,
		Email:       model.Email,
		Description: model.Description,
		Image:       model.Image,
	}
}

func badgeClassToInternal(model BadgeClassModel) *badgr.BadgeClass {
	alignments := make([]badgr.Alignment, 0, len(model.Alignments))
	for _, a := range model.Alignments {
		alignments = append(alignments, badgr.Alignment{
			TargetName:        a.TargetName,
			TargetURL:         a.TargetURL,
			TargetDescription: derefString(a.TargetDescription),
			TargetFramework:   derefString(a.TargetFramework),
			TargetCode:        derefString(a.TargetCode),
		})
	}
	return &badgr.BadgeClass{
		ID:           model.ID,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
		EntityID:     model.EntityID,
		IssuerID:     model.IssuerID,
		Name:         model.Name,
		Description:  model.Description,
		CriteriaURL:  model.CriteriaURL,
		CriteriaText: model.CriteriaText,
		Image:        model.Image,
		ImageType:    model.ImageType,
		Alignments:   alignments,
	}
}

func badgeClassToModel(class *badgr.BadgeClass) *BadgeClassModel {
	model := &BadgeClassModel{
		EntityID:     class.EntityID,
		IssuerID:     class.IssuerID,
		Name:         class.Name,
		Description:  class.Description,
		CriteriaURL:  class.CriteriaURL,
		CriteriaText: class.CriteriaText,
		Image:        class.Image,
		ImageType:    class.ImageType,
	}
	for _, a := range class.Alignments {
		model.Alignments = append(model.Alignments, BadgeClassAlignmentModel{
			TargetName:        a.TargetName,
			TargetURL:         a.TargetURL,
			TargetDescription: optionalString(a.TargetDescription),
			TargetFramework:   optionalString(a.TargetFramework),
			TargetCode:        optionalString(a.TargetCode),
		})
	}
	return model
}

func badgeInstanceToInternal(model BadgeInstanceModel) *badgr.BadgeInstance {
	evidence := make([]badgr.EvidenceItem, 0, len(model.Evidence))
	for _, e := range model.Evidence {
		evidence = append(evidence, badgr.EvidenceItem{EvidenceURL: e.EvidenceURL, Narrative: e.Narrative})
	}
	return &badgr.BadgeInstance{
		ID:                  model.ID,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
		EntityID:            model.EntityID,
		BadgeClassID:        model.BadgeClassID,
		IssuerID:            model.IssuerID,
		RecipientIdentifier: model.RecipientIdentifier,
		RecipientType:       model.RecipientType,
		Hashed:              model.Hashed,
		Salt:                model.Salt,
		IssuedOn:            model.IssuedOn,
		Expires:             model.Expires,
		Revoked:             model.Revoked,
		RevocationReason:    model.RevocationReason,
		Narrative:           model.Narrative,
		Evidence:            evidence,
	}
}

func badgeInstanceToModel(instance *badgr.BadgeInstance) *BadgeInstanceModel {
	model := &BadgeInstanceModel{
		EntityID:            instance.EntityID,
		BadgeClassID:        instance.BadgeClassID,
		IssuerID:            instance.IssuerID,
		RecipientIdentifier: instance.RecipientIdentifier,
		RecipientType:       instance.RecipientType,
		Hashed:              instance.Hashed,
		Salt:                instance.Salt,
		IssuedOn:            instance.IssuedOn,
		Expires:             instance.Expires,
		Revoked:             instance.Revoked,
		RevocationReason:    instance.RevocationReason,
		Narrative:           instance.Narrative,
	}
	if instance.ID != 0 {
		model.ID = instance.ID
	}
	if !instance.CreatedAt.IsZero() {
		model.CreatedAt = instance.CreatedAt
	}
	for i, e := range instance.Evidence {
		model.Evidence = append(model.Evidence, BadgeInstanceEvidenceModel{
			Position:    i,
			EvidenceURL: e.EvidenceURL,
			Narrative:   e.Narrative,
		})
	}
	return model
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
