package openbadges

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testURLs = URLs{BaseURL: "https://api.badgr.test/"}

func testInstance(evidence ...badgr.EvidenceItem) (*badgr.BadgeInstance, *badgr.BadgeClass) {
	class := &badgr.BadgeClass{EntityID: "class1", Name: "Good Citizen"}
	instance := &badgr.BadgeInstance{
		EntityID:            "inst1",
		RecipientIdentifier: "earner@example.com",
		RecipientType:       badgr.RecipientTypeEmail,
		IssuedOn:            time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Evidence:            evidence,
	}
	return instance, class
}

func TestURLsTrimTrailingSlash(t *testing.T) {
	assert.Equal(t, "https://api.badgr.test/public/assertions/abc", testURLs.Assertion("abc"))
	assert.Equal(t, "https://api.badgr.test/public/badges/abc/image", testURLs.BadgeClassImage("abc"))
}

func TestBuildAssertionV2(t *testing.T) {
	expires := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	instance, class := testInstance(
		badgr.EvidenceItem{EvidenceURL: "http://example.com/work"},
		badgr.EvidenceItem{Narrative: "did the thing"},
	)
	instance.Expires = &expires
	instance.Narrative = "Awarded for service"

	doc := BuildAssertion(testURLs, instance, class)
	assert.Equal(t, ContextV2, doc.Context)
	assert.Equal(t, "https://api.badgr.test/public/assertions/inst1", doc.ID)
	assert.Equal(t, "https://api.badgr.test/public/badges/class1", doc.Badge)
	assert.Equal(t, "2024-03-01T12:00:00Z", doc.IssuedOn)
	assert.Equal(t, "2025-03-01T00:00:00Z", doc.Expires)
	assert.Equal(t, "HostedBadge", doc.Verification.Type)
	require.Len(t, doc.Evidence, 2)
	assert.Equal(t, Evidence{Type: "Evidence", ID: "http://example.com/work"}, doc.Evidence[0])
	assert.Equal(t, Evidence{Type: "Evidence", Narrative: "did the thing"}, doc.Evidence[1])

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "revocationReason")
}

func TestBuildAssertionRevoked(t *testing.T) {
	instance, class := testInstance()
	instance.Revoked = true
	instance.RevocationReason = "issued in error"

	doc := BuildAssertion(testURLs, instance, class)
	assert.True(t, doc.Revoked)
	assert.Equal(t, "issued in error", doc.RevocationReason)
	assert.Empty(t, doc.Evidence)
}

func TestV1Evidence(t *testing.T) {
	publicURL := "https://api.badgr.test/public/assertions/inst1"
	tests := []struct {
		name     string
		evidence []badgr.EvidenceItem
		want     string
	}{
		{"none", nil, ""},
		{"single url", []badgr.EvidenceItem{{EvidenceURL: "http://example.com/a"}}, "http://example.com/a"},
		{"single narrative", []badgr.EvidenceItem{{Narrative: "text"}}, publicURL},
		{"url with narrative", []badgr.EvidenceItem{{EvidenceURL: "http://example.com/a", Narrative: "text"}}, publicURL},
		{"multiple", []badgr.EvidenceItem{{EvidenceURL: "http://example.com/a"}, {EvidenceURL: "http://example.com/b"}}, publicURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instance, _ := testInstance(tt.evidence...)
			assert.Equal(t, tt.want, V1Evidence(testURLs, instance))
		})
	}
}

func TestBuildAssertionV1(t *testing.T) {
	instance, class := testInstance(badgr.EvidenceItem{EvidenceURL: "http://example.com/a"})
	doc := BuildAssertionV1(testURLs, instance, class)
	assert.Equal(t, ContextV1, doc.Context)
	assert.Equal(t, "inst1", doc.UID)
	assert.Equal(t, "hosted", doc.Verify.Type)
	assert.Equal(t, "http://example.com/a", doc.Evidence)
}

func TestHashedRecipient(t *testing.T) {
	instance, class := testInstance()
	instance.Hashed = true
	instance.Salt = "pepper"

	doc := BuildAssertion(testURLs, instance, class)
	assert.True(t, doc.Recipient.Hashed)
	assert.Equal(t, "pepper", doc.Recipient.Salt)
	assert.Equal(t, HashIdentity("earner@example.com", "pepper"), doc.Recipient.Identity)
	assert.Regexp(t, `^sha256\$[0-9a-f]{64}$`, doc.Recipient.Identity)
}

func TestBuildBadgeClassAlignments(t *testing.T) {
	class := &badgr.BadgeClass{
		EntityID:    "class1",
		Name:        "Reader",
		CriteriaURL: "http://example.com/criteria",
		Alignments: []badgr.Alignment{
			{TargetName: "CCSS.ELA-Literacy.RST.11-12.3", TargetURL: "http://www.corestandards.org/ELA-Literacy/RST/11-12/3", TargetCode: "RST.11-12.3"},
		},
	}
	issuer := &badgr.Issuer{EntityID: "iss1", Name: "Example Org"}

	doc := BuildBadgeClass(testURLs, class, issuer)
	assert.Equal(t, "https://api.badgr.test/public/issuers/iss1", doc.Issuer)
	require.Len(t, doc.Alignment, 1)
	assert.Equal(t, "RST.11-12.3", doc.Alignment[0].TargetCode)

	profile := BuildIssuer(testURLs, issuer)
	assert.Equal(t, "Issuer", profile.Type)
	assert.Empty(t, profile.Image)
}
