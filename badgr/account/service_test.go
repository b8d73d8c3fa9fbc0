package account

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/db"
	"github.com/badgrhq/badgr-server/badgr/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []badgr.Message
}

func (m *recordingMailer) Send(_ context.Context, msg badgr.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	svc    *Service
	repo   *db.Repository
	mailer *recordingMailer
	user   *badgr.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := db.NewSQLiteRepository(filepath.Join(t.TempDir(), "badgr.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	pool := worker.New(2, nil)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	mailer := &recordingMailer{}
	svc := NewService(ServiceOptions{
		Users:   repo,
		Badges:  repo,
		Mailer:  mailer,
		Pool:    pool,
		BaseURL: "https://api.badgr.test/",
	})

	user, err := svc.Register(context.Background(), RegisterInput{Username: "earner", Email: "earner@example.com"})
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, mailer: mailer, user: user}
}

func (f *fixture) primary(t *testing.T) *badgr.EmailAddress {
	t.Helper()
	emails, err := f.svc.ListEmails(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, emails)
	return emails[0]
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	primary := f.primary(t)
	assert.True(t, primary.Primary)
	assert.False(t, primary.Verified)
	require.Equal(t, 1, f.mailer.count())
	assert.Contains(t, f.mailer.sent[0].Body, "https://api.badgr.test/v1/user/emails/")

	_, err := f.svc.Register(ctx, RegisterInput{Username: "earner", Email: "new@example.com"})
	assert.ErrorIs(t, err, badgr.ErrInvalid)

	_, err = f.svc.Register(ctx, RegisterInput{Username: "other", Email: "EARNER@example.com"})
	assert.ErrorIs(t, err, badgr.ErrInvalid)

	_, err = f.svc.Register(ctx, RegisterInput{Username: "bad name", Email: "x@example.com"})
	assert.ErrorIs(t, err, badgr.ErrInvalid)
}

func TestAddAndGetEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.svc.AddEmail(ctx, f.user.ID, EmailInput{Email: "second@example.com"})
	require.NoError(t, err)
	assert.False(t, added.Verified)
	assert.False(t, added.Primary)
	assert.Equal(t, 2, f.mailer.count())

	_, err = f.svc.AddEmail(ctx, f.user.ID, EmailInput{Email: "not-an-email"})
	assert.ErrorIs(t, err, badgr.ErrInvalid)

	got, err := f.svc.GetEmail(ctx, f.user.ID, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", got.Email)

	_, err = f.svc.GetEmail(ctx, f.user.ID+100, added.ID)
	assert.ErrorIs(t, err, badgr.ErrForbidden)

	_, err = f.svc.GetEmail(ctx, f.user.ID, 9999)
	assert.ErrorIs(t, err, badgr.ErrNotFound)
}

func TestDeleteEmailRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	primary := f.primary(t)

	err := f.svc.DeleteEmail(ctx, f.user.ID, primary.ID)
	require.Error(t, err)
	assert.Equal(t, MsgRemovePrimary, err.Error())

	// A non-primary sole address cannot be removed either.
	primary.Primary = false
	require.NoError(t, f.repo.UpdateEmail(ctx, primary))
	err = f.svc.DeleteEmail(ctx, f.user.ID, primary.ID)
	require.Error(t, err)
	assert.Equal(t, MsgRemoveOnly, err.Error())

	second, err := f.svc.AddEmail(ctx, f.user.ID, EmailInput{Email: "second@example.com"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteEmail(ctx, f.user.ID, second.ID))
	_, err = f.svc.GetEmail(ctx, f.user.ID, second.ID)
	assert.ErrorIs(t, err, badgr.ErrNotFound)

	assert.ErrorIs(t, f.svc.DeleteEmail(ctx, f.user.ID+1, primary.ID), badgr.ErrForbidden)
}

func TestUpdateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	primary := f.primary(t)

	second, err := f.svc.AddEmail(ctx, f.user.ID, EmailInput{Email: "second@example.com"})
	require.NoError(t, err)
	sentBefore := f.mailer.count()

	// Unverified addresses cannot become primary; resend sends again.
	updated, err := f.svc.UpdateEmail(ctx, f.user.ID, second.ID, UpdateEmailInput{Primary: true, Resend: true})
	require.NoError(t, err)
	assert.False(t, updated.Primary)
	assert.Equal(t, sentBefore+1, f.mailer.count())

	second.Verified = true
	require.NoError(t, f.repo.UpdateEmail(ctx, second))
	updated, err = f.svc.UpdateEmail(ctx, f.user.ID, second.ID, UpdateEmailInput{Primary: true})
	require.NoError(t, err)
	assert.True(t, updated.Primary)

	old, err := f.svc.GetEmail(ctx, f.user.ID, primary.ID)
	require.NoError(t, err)
	assert.False(t, old.Primary)

	// Resend is ignored once verified.
	_, err = f.svc.UpdateEmail(ctx, f.user.ID, second.ID, UpdateEmailInput{Resend: true})
	require.NoError(t, err)
	assert.Equal(t, sentBefore+1, f.mailer.count())
}

func issueTo(t *testing.T, repo *db.Repository, identifiers ...string) {
	t.Helper()
	ctx := context.Background()
	issuer := &badgr.Issuer{Name: "Org", OwnerID: 1}
	require.NoError(t, repo.CreateIssuer(ctx, issuer))
	class := &badgr.BadgeClass{IssuerID: issuer.ID, Name: "Badge", CriteriaText: "x"}
	require.NoError(t, repo.CreateBadgeClass(ctx, class))
	for _, identifier := range identifiers {
		require.NoError(t, repo.CreateBadgeInstance(ctx, &badgr.BadgeInstance{
			BadgeClassID:        class.ID,
			IssuerID:            issuer.ID,
			RecipientIdentifier: identifier,
			RecipientType:       badgr.RecipientTypeEmail,
			IssuedOn:            time.Now(),
		}))
	}
}

func TestProcessEmailVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	primary := f.primary(t)

	issueTo(t, f.repo, "earner@example.com", "Earner@Example.com", "EARNER@example.com", "Earner@Example.com", "someone@example.com")

	require.NoError(t, f.svc.ProcessEmailVerification(ctx, primary.ID))
	email, err := f.svc.GetEmail(ctx, f.user.ID, primary.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Earner@Example.com", "EARNER@example.com"}, email.Variants)

	// Running again adds nothing new.
	require.NoError(t, f.svc.ProcessEmailVerification(ctx, primary.ID))
	email, err = f.svc.GetEmail(ctx, f.user.ID, primary.ID)
	require.NoError(t, err)
	assert.Len(t, email.Variants, 2)

	assert.NoError(t, f.svc.ProcessEmailVerification(ctx, 9999))
}

func TestVerifyEmailSchedulesProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	primary := f.primary(t)
	issueTo(t, f.repo, "EARNER@EXAMPLE.COM")

	verified, err := f.svc.VerifyEmail(ctx, f.user.ID, primary.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	assert.Eventually(t, func() bool {
		email, err := f.svc.GetEmail(ctx, f.user.ID, primary.ID)
		return err == nil && email.HasVariant("EARNER@EXAMPLE.COM")
	}, 2*time.Second, 20*time.Millisecond)

	_, err = f.svc.VerifyEmail(ctx, f.user.ID+1, primary.ID)
	assert.ErrorIs(t, err, badgr.ErrForbidden)
}
