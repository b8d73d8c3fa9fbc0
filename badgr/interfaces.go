package badgr

import "context"

// Logger is the minimal logging abstraction used across modules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// UserRepository defines storage operations for users and their email addresses.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	CreateUserWithEmail(ctx context.Context, user *User, email *EmailAddress) error
	GetUser(ctx context.Context, id uint) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)

	ListEmails(ctx context.Context, userID uint) ([]*EmailAddress, error)
	GetEmail(ctx context.Context, id uint) (*EmailAddress, error)
	FindEmail(ctx context.Context, email string) (*EmailAddress, error)
	CreateEmail(ctx context.Context, email *EmailAddress) error
	UpdateEmail(ctx context.Context, email *EmailAddress) error
	DeleteEmail(ctx context.Context, id uint) error
	CountEmails(ctx context.Context, userID uint) (int64, error)
	SetPrimaryEmail(ctx context.Context, userID, emailID uint) error
	AddEmailVariant(ctx context.Context, emailID uint, variant string) error
}

// BadgeRepository defines storage operations for issuers, badge classes and assertions.
type BadgeRepository interface {
	CreateIssuer(ctx context.Context, issuer *Issuer) error
	GetIssuerByEntityID(ctx context.Context, entityID string) (*Issuer, error)
	GetIssuer(ctx context.Context, id uint) (*Issuer, error)

	CreateBadgeClass(ctx context.Context, class *BadgeClass) error
	GetBadgeClassByEntityID(ctx context.Context, entityID string) (*BadgeClass, error)
	GetBadgeClass(ctx context.Context, id uint) (*BadgeClass, error)

	CreateBadgeInstance(ctx context.Context, instance *BadgeInstance) error
	CreateBadgeInstances(ctx context.Context, instances []*BadgeInstance) error
	UpdateBadgeInstance(ctx context.Context, instance *BadgeInstance) error
	GetBadgeInstanceByEntityID(ctx context.Context, entityID string) (*BadgeInstance, error)
	ListBadgeInstancesByClass(ctx context.Context, badgeClassID uint) ([]*BadgeInstance, error)
	FindBadgeInstancesByRecipient(ctx context.Context, identifier string) ([]*BadgeInstance, error)
}

// ShareRepository records badge shares.
type ShareRepository interface {
	CreateShare(ctx context.Context, share *BadgeShare) error
	CountSharesByProvider(ctx context.Context) (map[string]int64, error)
}

// WorkerPool limits concurrency for background tasks.
type WorkerPool interface {
	Submit(task func()) error
	SubmitWait(task func() error) error
	Shutdown(ctx context.Context) error
	Size() int
}

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
