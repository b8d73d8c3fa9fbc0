// Package openbadges assembles Open Badges JSON-LD documents for issuers,
// badge classes and assertions.
package openbadges

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
)

// ContextV2 is the Open Badges 2.0 JSON-LD context.
const ContextV2 = "https://w3id.org/openbadges/v2"

// ContextV1 is the Open Badges 1.1 JSON-LD context.
const ContextV1 = "https://w3id.org/openbadges/v1"

// URLs builds the public URLs of hosted objects.
type URLs struct {
	BaseURL string
}

func (u URLs) base() string {
	return strings.TrimRight(u.BaseURL, "/")
}

// Assertion returns the public URL of an assertion.
func (u URLs) Assertion(entityID string) string {
	return u.base() + "/public/assertions/" + entityID
}

// AssertionImage returns the public image URL of an assertion.
func (u URLs) AssertionImage(entityID string) string {
	return u.Assertion(entityID) + "/image"
}

// BadgeClass returns the public URL of a badge class.
func (u URLs) BadgeClass(entityID string) string {
	return u.base() + "/public/badges/" + entityID
}

// BadgeClassImage returns the public image URL of a badge class.
func (u URLs) BadgeClassImage(entityID string) string {
	return u.BadgeClass(entityID) + "/image"
}

// Issuer returns the public URL of an issuer.
func (u URLs) Issuer(entityID string) string {
	return u.base() + "/public/issuers/" + entityID
}

// Recipient is the recipient block of an assertion.
type Recipient struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
	Hashed   bool   `json:"hashed"`
	Salt     string `json:"salt,omitempty"`
}

// Verification describes how an assertion is verified.
type Verification struct {
	Type string `json:"type"`
}

// Evidence is an OB 2.0 evidence object.
type Evidence struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Narrative string `json:"narrative,omitempty"`
}

// AssertionV2 is an Open Badges 2.0 assertion.
type AssertionV2 struct {
	Context          string       `json:"@context"`
	Type             string       `json:"type"`
	ID               string       `json:"id"`
	Badge            string       `json:"badge"`
	Image            string       `json:"image"`
	Recipient        Recipient    `json:"recipient"`
	Verification     Verification `json:"verification"`
	IssuedOn         string       `json:"issuedOn"`
	Expires          string       `json:"expires,omitempty"`
	Narrative        string       `json:"narrative,omitempty"`
	Evidence         []Evidence   `json:"evidence,omitempty"`
	Revoked          bool         `json:"revoked,omitempty"`
	RevocationReason string       `json:"revocationReason,omitempty"`
}

// AssertionV1 is an Open Badges 1.1 assertion.
type AssertionV1 struct {
	Context   string    `json:"@context"`
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Badge     string    `json:"badge"`
	Image     string    `json:"image"`
	Recipient Recipient `json:"recipient"`
	Verify    VerifyV1  `json:"verify"`
	IssuedOn  string    `json:"issuedOn"`
	Expires   string    `json:"expires,omitempty"`
	Evidence  string    `json:"evidence,omitempty"`
}

// VerifyV1 is the 1.1 verification block.
type VerifyV1 struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// BuildAssertion assembles the Open Badges 2.0 form of an assertion.
func BuildAssertion(urls URLs, instance *badgr.BadgeInstance, class *badgr.BadgeClass) AssertionV2 {
	doc := AssertionV2{
		Context:      ContextV2,
		Type:         "Assertion",
		ID:           urls.Assertion(instance.EntityID),
		Badge:        urls.BadgeClass(class.EntityID),
		Image:        urls.AssertionImage(instance.EntityID),
		Recipient:    recipient(instance),
		Verification: Verification{Type: "HostedBadge"},
		IssuedOn:     formatTime(instance.IssuedOn),
		Narrative:    instance.Narrative,
	}
	if instance.Expires != nil {
		doc.Expires = formatTime(*instance.Expires)
	}
	for _, item := range instance.Evidence {
		doc.Evidence = append(doc.Evidence, Evidence{
			Type:      "Evidence",
			ID:        item.EvidenceURL,
			Narrative: item.Narrative,
		})
	}
	if instance.Revoked {
		doc.Revoked = true
		doc.RevocationReason = instance.RevocationReason
	}
	return doc
}

// BuildAssertionV1 assembles the Open Badges 1.1 form of an assertion.
// A single URL-only evidence item is inlined; any other evidence is
// represented by the hosted assertion URL.
func BuildAssertionV1(urls URLs, instance *badgr.BadgeInstance, class *badgr.BadgeClass) AssertionV1 {
	doc := AssertionV1{
		Context:   ContextV1,
		Type:      "Assertion",
		ID:        urls.Assertion(instance.EntityID),
		UID:       instance.EntityID,
		Badge:     urls.BadgeClass(class.EntityID),
		Image:     urls.AssertionImage(instance.EntityID),
		Recipient: recipient(instance),
		Verify:    VerifyV1{Type: "hosted", URL: urls.Assertion(instance.EntityID)},
		IssuedOn:  formatTime(instance.IssuedOn),
		Evidence:  V1Evidence(urls, instance),
	}
	if instance.Expires != nil {
		doc.Expires = formatTime(*instance.Expires)
	}
	return doc
}

// V1Evidence returns the single evidence URL used by the 1.1 form.
func V1Evidence(urls URLs, instance *badgr.BadgeInstance) string {
	switch {
	case len(instance.Evidence) == 0:
		return ""
	case len(instance.Evidence) == 1 && instance.Evidence[0].EvidenceURL != "" && instance.Evidence[0].Narrative == "":
		return instance.Evidence[0].EvidenceURL
	default:
		return urls.Assertion(instance.EntityID)
	}
}

// HashIdentity returns the salted sha256 identity hash of a recipient.
func HashIdentity(identity, salt string) string {
	sum := sha256.Sum256([]byte(identity + salt))
	return "sha256$" + hex.EncodeToString(sum[:])
}

func recipient(instance *badgr.BadgeInstance) Recipient {
	recipientType := instance.RecipientType
	if recipientType == "" {
		recipientType = badgr.RecipientTypeEmail
	}
	if !instance.Hashed {
		return Recipient{Type: recipientType, Identity: instance.RecipientIdentifier}
	}
	return Recipient{
		Type:     recipientType,
		Identity: HashIdentity(instance.RecipientIdentifier, instance.Salt),
		Hashed:   true,
		Salt:     instance.Salt,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
