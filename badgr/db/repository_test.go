package db

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	logpkg "github.com/badgrhq/badgr-server/badgr/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "badgr.db")

	base := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	gormLogger := logpkg.NewGormLogger(base, logger.Silent, 0)

	repo, err := NewSQLiteRepository(path, gormLogger)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestUserAndEmailCRUD(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := &badgr.User{Username: "earner", FirstName: "Test"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.ID == 0 || len(user.EntityID) != 22 {
		t.Fatalf("unexpected user identity: %+v", user)
	}

	dup := &badgr.User{Username: "earner"}
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, badgr.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	primary := &badgr.EmailAddress{UserID: user.ID, Email: "earner@example.com", Verified: true, Primary: true}
	require.NoError(t, repo.CreateEmail(ctx, primary))
	second := &badgr.EmailAddress{UserID: user.ID, Email: "other@example.com"}
	require.NoError(t, repo.CreateEmail(ctx, second))

	found, err := repo.FindEmail(ctx, "EARNER@example.com")
	require.NoError(t, err)
	assert.Equal(t, primary.ID, found.ID)

	count, err := repo.CountEmails(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	second.Verified = true
	require.NoError(t, repo.UpdateEmail(ctx, second))
	require.NoError(t, repo.SetPrimaryEmail(ctx, user.ID, second.ID))

	emails, err := repo.ListEmails(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, second.ID, emails[0].ID)
	assert.True(t, emails[0].Primary)
	assert.True(t, emails[0].Verified)
	assert.False(t, emails[1].Primary)

	require.NoError(t, repo.AddEmailVariant(ctx, primary.ID, "Earner@Example.com"))
	loaded, err := repo.GetEmail(ctx, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Earner@Example.com"}, loaded.Variants)

	require.NoError(t, repo.DeleteEmail(ctx, primary.ID))
	_, err = repo.GetEmail(ctx, primary.ID)
	assert.ErrorIs(t, err, badgr.ErrNotFound)

	// The address can be registered again after deletion.
	again := &badgr.EmailAddress{UserID: user.ID, Email: "earner@example.com"}
	assert.NoError(t, repo.CreateEmail(ctx, again))
}

func TestBadgeInstanceLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	owner := &badgr.User{Username: "issuer-owner"}
	require.NoError(t, repo.CreateUser(ctx, owner))

	issuer := &badgr.Issuer{OwnerID: owner.ID, Name: "Test Issuer", URL: "https://issuer.example", Email: "issuer@example.com"}
	require.NoError(t, repo.CreateIssuer(ctx, issuer))

	class := &badgr.BadgeClass{
		IssuerID:    issuer.ID,
		Name:        "Skateboarding",
		Description: "Tricks",
		CriteriaURL: "https://issuer.example/criteria",
		Alignments: []badgr.Alignment{
			{TargetName: "Balance", TargetURL: "https://framework.example/balance", TargetCode: "B1"},
		},
	}
	require.NoError(t, repo.CreateBadgeClass(ctx, class))

	loadedClass, err := repo.GetBadgeClassByEntityID(ctx, class.EntityID)
	require.NoError(t, err)
	require.Len(t, loadedClass.Alignments, 1)
	assert.Equal(t, "B1", loadedClass.Alignments[0].TargetCode)
	assert.Empty(t, loadedClass.Alignments[0].TargetFramework)

	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	instance := &badgr.BadgeInstance{
		BadgeClassID:        class.ID,
		IssuerID:            issuer.ID,
		RecipientIdentifier: "Test@Example.com",
		RecipientType:       badgr.RecipientTypeEmail,
		Hashed:              true,
		Salt:                "salt",
		IssuedOn:            time.Now().UTC(),
		Expires:             &expires,
		Evidence: []badgr.EvidenceItem{
			{EvidenceURL: "http://fake.evidence.url.test"},
			{EvidenceURL: "http://second.evidence.url.test", Narrative: "second"},
		},
	}
	require.NoError(t, repo.CreateBadgeInstance(ctx, instance))

	loaded, err := repo.GetBadgeInstanceByEntityID(ctx, instance.EntityID)
	require.NoError(t, err)
	require.Len(t, loaded.Evidence, 2)
	assert.Equal(t, "second", loaded.Evidence[1].Narrative)
	require.NotNil(t, loaded.Expires)
	assert.True(t, expires.Equal(*loaded.Expires))

	byRecipient, err := repo.FindBadgeInstancesByRecipient(ctx, "test@example.com")
	require.NoError(t, err)
	require.Len(t, byRecipient, 1)

	loaded.Revoked = true
	loaded.RevocationReason = "mistake"
	loaded.Evidence = loaded.Evidence[:1]
	require.NoError(t, repo.UpdateBadgeInstance(ctx, loaded))

	reloaded, err := repo.GetBadgeInstanceByEntityID(ctx, instance.EntityID)
	require.NoError(t, err)
	assert.True(t, reloaded.Revoked)
	assert.Equal(t, "mistake", reloaded.RevocationReason)
	assert.Len(t, reloaded.Evidence, 1)

	list, err := repo.ListBadgeInstancesByClass(ctx, class.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = repo.GetBadgeInstanceByEntityID(ctx, "missing")
	assert.ErrorIs(t, err, badgr.ErrNotFound)
}

func TestShares(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, provider := range []string{"twitter", "twitter", "linkedin"} {
		share := &badgr.BadgeShare{Provider: provider, BadgeInstanceID: 1}
		require.NoError(t, repo.CreateShare(ctx, share))
		assert.Equal(t, "unknown", share.Source)
	}

	counts, err := repo.CountSharesByProvider(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"twitter": 2, "linkedin": 1}, counts)
}

func TestCreateUserWithEmailIsAtomic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := &badgr.User{Username: "earner"}
	email := &badgr.EmailAddress{Email: "earner@example.com", Primary: true}
	require.NoError(t, repo.CreateUserWithEmail(ctx, user, email))
	assert.NotZero(t, user.ID)
	assert.Equal(t, user.ID, email.UserID)
	assert.True(t, email.Primary)

	// The address is taken, so the second user must not be stored either.
	other := &badgr.User{Username: "other"}
	err := repo.CreateUserWithEmail(ctx, other, &badgr.EmailAddress{Email: "earner@example.com", Primary: true})
	require.ErrorIs(t, err, badgr.ErrDuplicate)
	var resErr *badgr.ResourceError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "email", resErr.Resource)

	_, err = repo.FindUserByUsername(ctx, "other")
	assert.ErrorIs(t, err, badgr.ErrNotFound)

	err = repo.CreateUserWithEmail(ctx, &badgr.User{Username: "earner"}, &badgr.EmailAddress{Email: "fresh@example.com"})
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "user", resErr.Resource)
	_, err = repo.FindEmail(ctx, "fresh@example.com")
	assert.ErrorIs(t, err, badgr.ErrNotFound)
}

func TestCreateBadgeInstancesIsAtomic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	class := &badgr.BadgeClass{IssuerID: 1, Name: "Batch"}
	require.NoError(t, repo.CreateBadgeClass(ctx, class))
	assert.Equal(t, "image/png", class.ImageType)

	instances := []*badgr.BadgeInstance{
		{BadgeClassID: class.ID, IssuerID: 1, RecipientIdentifier: "a@example.com", RecipientType: badgr.RecipientTypeEmail, IssuedOn: time.Now().UTC()},
		{BadgeClassID: class.ID, IssuerID: 1, RecipientIdentifier: "b@example.com", RecipientType: badgr.RecipientTypeEmail, IssuedOn: time.Now().UTC(),
			Evidence: []badgr.EvidenceItem{{EvidenceURL: "https://example.com/e"}}},
	}
	require.NoError(t, repo.CreateBadgeInstances(ctx, instances))
	assert.NotEmpty(t, instances[0].EntityID)
	assert.NotEqual(t, instances[0].EntityID, instances[1].EntityID)
	require.Len(t, instances[1].Evidence, 1)

	dup := []*badgr.BadgeInstance{
		{BadgeClassID: class.ID, IssuerID: 1, RecipientIdentifier: "c@example.com", IssuedOn: time.Now().UTC()},
		{EntityID: instances[0].EntityID, BadgeClassID: class.ID, IssuerID: 1, RecipientIdentifier: "d@example.com", IssuedOn: time.Now().UTC()},
	}
	assert.ErrorIs(t, repo.CreateBadgeInstances(ctx, dup), badgr.ErrDuplicate)

	list, err := repo.ListBadgeInstancesByClass(ctx, class.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMigrationBackfillsBlankDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badgr.db")
	gormLogger := logpkg.NewGormLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), logger.Silent, 0)
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path, gormLogger)
	require.NoError(t, err)
	class := &badgr.BadgeClass{IssuerID: 1, Name: "Legacy"}
	require.NoError(t, repo.CreateBadgeClass(ctx, class))
	instance := &badgr.BadgeInstance{BadgeClassID: class.ID, IssuerID: 1, RecipientIdentifier: "old@example.com", IssuedOn: time.Now().UTC()}
	require.NoError(t, repo.CreateBadgeInstance(ctx, instance))
	require.NoError(t, repo.CreateShare(ctx, &badgr.BadgeShare{Provider: "twitter", BadgeInstanceID: instance.ID}))

	require.NoError(t, repo.db.Exec("UPDATE badge_instances SET recipient_type = ''").Error)
	require.NoError(t, repo.db.Exec("UPDATE badge_classes SET image_type = ''").Error)
	require.NoError(t, repo.db.Exec("UPDATE backpack_badge_shares SET source = ''").Error)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path, gormLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	loaded, err := repo.GetBadgeInstanceByEntityID(ctx, instance.EntityID)
	require.NoError(t, err)
	assert.Equal(t, badgr.RecipientTypeEmail, loaded.RecipientType)

	loadedClass, err := repo.GetBadgeClass(ctx, class.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", loadedClass.ImageType)

	var source string
	require.NoError(t, repo.db.Raw("SELECT source FROM backpack_badge_shares LIMIT 1").Scan(&source).Error)
	assert.Equal(t, "unknown", source)
}
