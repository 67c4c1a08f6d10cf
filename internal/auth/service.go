// Package auth is the identity collaborator: it registers users, signs them in and out and
// resolves the user behind a session token. Password, session and lockout rules come from a
// facility configuration. Access control stays with callers.
package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"vivariumcore/pkg/domain"
)

// DefaultSessionCapacity bounds the number of live sessions kept in memory.
const DefaultSessionCapacity = 4096

var emailRe = regexp.MustCompile(domain.EmailPattern)

// User is a registered account. The password hash never leaves the package.
type User struct {
	ID          string    `json:"id" yaml:"id"`
	Email       string    `json:"email" yaml:"email"`
	DisplayName string    `json:"displayName" yaml:"displayName"`
	FacilityID  string    `json:"facilityId,omitempty" yaml:"facilityId,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`

	passwordHash      string
	passwordChangedAt time.Time
	failedAttempts    int
}

// Session is returned by SignIn.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type sessionEntry struct {
	userID    string
	expiresAt time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBcryptCost overrides the hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithSessionCapacity overrides the maximum number of cached sessions.
func WithSessionCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// Service implements sign-up, sign-in, sign-out and current-user lookup.
type Service struct {
	mu       sync.Mutex
	policy   domain.FacilityConfiguration
	users    map[string]*User // keyed by id
	byEmail  map[string]string
	sessions *lru.Cache[string, sessionEntry]
	tokens   *TokenIssuer

	now      func() time.Time
	logger   *zap.Logger
	cost     int
	capacity int
}

// NewService builds a service. The policy must pass validation.
func NewService(secret, issuer string, policy domain.FacilityConfiguration, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if errs := policy.Validate(); len(errs) > 0 {
		return nil, &domain.ConfigurationValidationError{ConfigurationType: policy.ConfigurationType(), Errors: errs}
	}
	s := &Service{
		policy:   policy.Clone(),
		users:    make(map[string]*User),
		byEmail:  make(map[string]string),
		tokens:   NewTokenIssuer(secret, issuer),
		now:      time.Now,
		logger:   zap.NewNop(),
		cost:     bcrypt.DefaultCost,
		capacity: DefaultSessionCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	cache, err := lru.New[string, sessionEntry](s.capacity)
	if err != nil {
		return nil, err
	}
	s.sessions = cache
	return s, nil
}

// Policy returns a copy of the active facility configuration.
func (s *Service) Policy() domain.FacilityConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.Clone()
}

// SetPolicy replaces the active configuration after validating it. Existing sessions keep
// their original expiry.
func (s *Service) SetPolicy(policy domain.FacilityConfiguration) error {
	if errs := policy.Validate(); len(errs) > 0 {
		return &domain.ConfigurationValidationError{ConfigurationType: policy.ConfigurationType(), Errors: errs}
	}
	s.mu.Lock()
	s.policy = policy.Clone()
	s.mu.Unlock()
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new user.
func (s *Service) SignUp(ctx context.Context, email, password, displayName, facilityID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	email = normalizeEmail(email)
	s.mu.Lock()
	minLength := s.policy.MinPasswordLength
	s.mu.Unlock()

	var errs []domain.ValidationError
	switch {
	case email == "":
		errs = append(errs, domain.RequiredFieldMissing("email"))
	case !emailRe.MatchString(email):
		errs = append(errs, domain.InvalidFormat("email", domain.EmailPattern))
	}
	if strings.TrimSpace(displayName) == "" {
		errs = append(errs, domain.RequiredFieldMissing("displayName"))
	}
	errs = append(errs, ValidatePasswordStrength(password, minLength)...)
	if len(errs) > 0 {
		return User{}, &domain.ValidationFailedError{Entity: domain.EntityUser, ID: email, Errors: errs}
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return User{}, &domain.AlreadyExistsError{Entity: domain.EntityUser, ID: email}
	}
	now := s.now().UTC()
	id := domain.GenerateID(domain.EntityUser)
	for s.users[id] != nil {
		id = domain.GenerateID(domain.EntityUser)
	}
	user := &User{
		ID:                id,
		Email:             email,
		DisplayName:       strings.TrimSpace(displayName),
		FacilityID:        facilityID,
		CreatedAt:         now,
		passwordHash:      hash,
		passwordChangedAt: now,
	}
	s.users[id] = user
	s.byEmail[email] = id
	s.logger.Info("user registered", zap.String("user_id", id), zap.String("email", email))
	return *user, nil
}

// SignIn verifies credentials and opens a session. Unknown emails and wrong passwords are
// indistinguishable to the caller. Reaching the configured attempt limit locks the account.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	email = normalizeEmail(email)
	s.mu.Lock()
	id, ok := s.byEmail[email]
	var (
		user *User
		hash string
	)
	if ok {
		user = s.users[id]
		hash = user.passwordHash
	}
	locked := ok && user.failedAttempts >= s.policy.MaxLoginAttempts
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("sign-in for unknown user", zap.String("email", email))
		return Session{}, &domain.AccessDeniedError{Reason: "invalid credentials"}
	}
	if locked {
		return Session{}, &domain.AccessDeniedError{Reason: "account locked"}
	}

	// bcrypt runs unlocked; the hash is re-checked below in case it changed meanwhile.
	checkErr := CheckPassword(password, hash)
	if checkErr != nil && !errors.Is(checkErr, errInvalidPassword) {
		return Session{}, checkErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if user.failedAttempts >= s.policy.MaxLoginAttempts {
		return Session{}, &domain.AccessDeniedError{Reason: "account locked"}
	}
	if checkErr != nil || user.passwordHash != hash {
		user.failedAttempts++
		s.logger.Warn("sign-in failed",
			zap.String("user_id", id),
			zap.Int("attempts", user.failedAttempts),
		)
		if user.failedAttempts >= s.policy.MaxLoginAttempts {
			return Session{}, &domain.AccessDeniedError{Reason: "account locked"}
		}
		return Session{}, &domain.AccessDeniedError{Reason: "invalid credentials"}
	}

	now := s.now().UTC()
	if days := s.policy.PasswordExpiryDays; days > 0 && now.Sub(user.passwordChangedAt) > time.Duration(days)*24*time.Hour {
		return Session{}, &domain.AccessDeniedError{Reason: "password expired"}
	}
	user.failedAttempts = 0
	ttl := time.Duration(s.policy.SessionTimeoutMinutes) * time.Minute
	token, claims, err := s.tokens.Issue(*user, now, ttl)
	if err != nil {
		return Session{}, err
	}
	expires := claims.ExpiresAt.Time
	s.sessions.Add(claims.ID, sessionEntry{userID: id, expiresAt: expires})
	s.logger.Info("user signed in", zap.String("user_id", id), zap.String("session_id", claims.ID))
	return Session{ID: claims.ID, UserID: id, Token: token, ExpiresAt: expires}, nil
}

// SignOut ends the session carried by token. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	claims, err := s.tokens.Parse(token, s.now())
	if err != nil {
		return &domain.AccessDeniedError{Reason: err.Error()}
	}
	s.sessions.Remove(claims.ID)
	s.logger.Info("user signed out", zap.String("user_id", claims.Subject), zap.String("session_id", claims.ID))
	return nil
}

// CurrentUser resolves the user behind a live session token.
func (s *Service) CurrentUser(ctx context.Context, token string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	now := s.now()
	claims, err := s.tokens.Parse(token, now)
	if err != nil {
		return User{}, &domain.AccessDeniedError{Reason: err.Error()}
	}
	entry, ok := s.sessions.Get(claims.ID)
	if !ok {
		return User{}, &domain.AccessDeniedError{Reason: "session ended"}
	}
	if !now.Before(entry.expiresAt) {
		s.sessions.Remove(claims.ID)
		return User{}, &domain.AccessDeniedError{Reason: "session expired"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[entry.userID]
	if !ok {
		return User{}, &domain.NotFoundError{Entity: domain.EntityUser, ID: entry.userID}
	}
	return *user, nil
}

// ChangePassword replaces a user's password after verifying the current one. It resets the
// expiry clock and ends every open session for the user.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	user, ok := s.users[userID]
	var currentHash string
	if ok {
		currentHash = user.passwordHash
	}
	minLength := s.policy.MinPasswordLength
	s.mu.Unlock()
	if !ok {
		return &domain.NotFoundError{Entity: domain.EntityUser, ID: userID}
	}
	if err := CheckPassword(current, currentHash); err != nil {
		return &domain.AccessDeniedError{Reason: "invalid credentials"}
	}
	if errs := ValidatePasswordStrength(next, minLength); len(errs) > 0 {
		return &domain.ValidationFailedError{Entity: domain.EntityUser, ID: userID, Errors: errs}
	}
	hash, err := HashPassword(next, s.cost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	user.passwordHash = hash
	user.passwordChangedAt = s.now().UTC()
	user.failedAttempts = 0
	s.mu.Unlock()
	for _, key := range s.sessions.Keys() {
		if entry, ok := s.sessions.Peek(key); ok && entry.userID == userID {
			s.sessions.Remove(key)
		}
	}
	return nil
}

// Unlock clears the failed attempt counter for a user.
func (s *Service) Unlock(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return &domain.NotFoundError{Entity: domain.EntityUser, ID: userID}
	}
	user.failedAttempts = 0
	return nil
}
