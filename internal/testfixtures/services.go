package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/todo-crud/internal/application"
)

// FastHashParams keeps argon2id cheap enough for unit tests.
var FastHashParams = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users  application.UserRepository
	Logger *slog.Logger
}

// NewUserService builds a user service on the factory clock with cheap hashes.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	return application.NewUserService(deps.Users, FastHashParams, f.Clock.NowFunc(), deps.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	PasswordVerify application.PasswordVerifier
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service whose session ids and tokens come from
// the factory generator and whose time comes from the factory clock.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	params := FastHashParams
	return application.NewAuthService(deps.Credentials, deps.Sessions, application.AuthOptions{
		SessionTTL:     deps.SessionTTL,
		Verify:         deps.PasswordVerify,
		SessionID:      f.IDGenerator.NextFunc(),
		TokenGenerator: f.IDGenerator.NextFunc(),
		Now:            f.Clock.NowFunc(),
		HashParams:     &params,
	}, deps.Logger)
}
