package badgr

import (
	"strings"
	"time"
)

// Recipient identifier types.
const (
	RecipientTypeEmail = "email"
	RecipientTypeURL   = "url"
	RecipientTypeTel   = "telephone"
)

// User is a registered Badgr account.
type User struct {
	ID        uint
	CreatedAt time.Time
	UpdatedAt time.Time
	EntityID  string
	Username  string
	FirstName string
	LastName  string
}

// EmailAddress is an address registered to a user.
// Variants are alternate casings of the same address that badges were issued to.
type EmailAddress struct {
	ID        uint
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint
	Email     string
	Verified  bool
	Primary   bool
	Variants  []string
}

// HasVariant reports whether identifier is already recorded as a variant.
func (e *EmailAddress) HasVariant(identifier string) bool {
	for _, v := range e.Variants {
		if v == identifier {
			return true
		}
	}
	return false
}

// Issuer is an organization that awards badges.
type Issuer struct {
	ID          uint
	CreatedAt   time.Time
	UpdatedAt   time.Time
	EntityID    string
	OwnerID     uint
	Name        string
	URL         string
	Email       string
	Description string
	Image       []byte
}

// Alignment links a badge class to an external educational framework item.
type Alignment struct {
	TargetName        string
	TargetURL         string
	TargetDescription string
	TargetFramework   string
	TargetCode        string
}

// BadgeClass is the definition of an earnable badge.
type BadgeClass struct {
	ID           uint
	CreatedAt    time.Time
	UpdatedAt    time.Time
	EntityID     string
	IssuerID     uint
	Name         string
	Description  string
	CriteriaURL  string
	CriteriaText string
	Image        []byte
	ImageType    string
	Alignments   []Alignment
}

// EvidenceItem is one piece of evidence attached to an assertion.
type EvidenceItem struct {
	EvidenceURL string
	Narrative   string
}

// BadgeInstance is an awarded badge, also called an assertion.
type BadgeInstance struct {
	ID                  uint
	CreatedAt           time.Time
	UpdatedAt           time.Time
	EntityID            string
	BadgeClassID        uint
	IssuerID            uint
	RecipientIdentifier string
	RecipientType       string
	Hashed              bool
	Salt                string
	IssuedOn            time.Time
	Expires             *time.Time
	Revoked             bool
	RevocationReason    string
	Narrative           string
	Evidence            []EvidenceItem
}

// IsExpired reports whether the instance has passed its expiration at now.
func (b *BadgeInstance) IsExpired(now time.Time) bool {
	return b.Expires != nil && now.After(*b.Expires)
}

// BadgeShare records a user sharing a badge instance to a provider.
type BadgeShare struct {
	ID              uint
	CreatedAt       time.Time
	Provider        string
	BadgeInstanceID uint
	Source          string
}

// NormalizeEmail lowercases and trims an address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
