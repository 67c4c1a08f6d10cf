package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"vivariumcore/pkg/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, policy domain.FacilityConfiguration, opts ...Option) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithBcryptCost(bcrypt.MinCost)}, opts...)
	svc, err := NewService(testSecret, "vivariumcore-test", policy, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, clock
}

func signUp(t *testing.T, svc *Service, email, password string) User {
	t.Helper()
	user, err := svc.SignUp(context.Background(), email, password, "Dr. Keeper", "facility_1_0001")
	if err != nil {
		t.Fatalf("sign up %s: %v", email, err)
	}
	return user
}

func TestNewServiceRejectsBadInput(t *testing.T) {
	if _, err := NewService("", "x", domain.DefaultFacilityConfiguration()); err == nil {
		t.Fatalf("expected missing secret error")
	}
	bad := domain.DefaultFacilityConfiguration()
	bad.MinPasswordLength = 2
	_, err := NewService(testSecret, "x", bad)
	var cfgErr *domain.ConfigurationValidationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration validation error, got %v", err)
	}
}

func TestSignUpSignInCurrentUserSignOut(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, domain.DefaultFacilityConfiguration())
	user := signUp(t, svc, " Keeper@Example.org ", "abc12345")
	if user.Email != "keeper@example.org" || !domain.IsValidID(user.ID, domain.EntityUser) {
		t.Fatalf("unexpected user %+v", user)
	}

	session, err := svc.SignIn(ctx, "keeper@example.org", "abc12345")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.UserID != user.ID || session.Token == "" {
		t.Fatalf("unexpected session %+v", session)
	}
	if want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC); !session.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v, want %v", session.ExpiresAt, want)
	}

	current, err := svc.CurrentUser(ctx, session.Token)
	if err != nil || current.ID != user.ID {
		t.Fatalf("current user = %+v, %v", current, err)
	}

	if err := svc.SignOut(ctx, session.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if err := svc.SignOut(ctx, session.Token); err != nil {
		t.Fatalf("second sign out: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, session.Token); domain.KindOf(err) != domain.ErrorKindAccessDenied {
		t.Fatalf("expected access denied after sign out, got %v", err)
	}
}

func TestSignUpValidationAndDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, domain.SecureFacilityConfiguration())

	_, err := svc.SignUp(ctx, "not-an-email", "short", "", "")
	var vErr *domain.ValidationFailedError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"email", "displayName", "at least 14 characters", "at least one number"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}

	signUp(t, svc, "keeper@example.org", "longpassword123")
	_, err = svc.SignUp(ctx, "KEEPER@example.org", "longpassword456", "Other", "")
	if domain.KindOf(err) != domain.ErrorKindAlreadyExists {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestSignInLockout(t *testing.T) {
	ctx := context.Background()
	policy := domain.DefaultFacilityConfiguration()
	policy.MaxLoginAttempts = 3
	core, logs := observer.New(zapcore.WarnLevel)
	svc, _ := newTestService(t, policy, WithLogger(zap.New(core)))
	user := signUp(t, svc, "keeper@example.org", "abc12345")

	for i := 0; i < 2; i++ {
		_, err := svc.SignIn(ctx, "keeper@example.org", "wrong999")
		if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}
	if _, err := svc.SignIn(ctx, "keeper@example.org", "wrong999"); err == nil || !strings.Contains(err.Error(), "account locked") {
		t.Fatalf("expected lockout, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "keeper@example.org", "abc12345"); err == nil || !strings.Contains(err.Error(), "account locked") {
		t.Fatalf("correct password must not bypass lockout, got %v", err)
	}
	if logs.FilterMessage("sign-in failed").Len() != 3 {
		t.Fatalf("expected 3 failure logs, got %d", logs.FilterMessage("sign-in failed").Len())
	}

	if err := svc.Unlock(user.ID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := svc.SignIn(ctx, "keeper@example.org", "abc12345"); err != nil {
		t.Fatalf("sign in after unlock: %v", err)
	}
	if err := svc.Unlock("user_1_0001"); domain.KindOf(err) != domain.ErrorKindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSignInUnknownUserIsAccessDenied(t *testing.T) {
	svc, _ := newTestService(t, domain.DefaultFacilityConfiguration())
	_, err := svc.SignIn(context.Background(), "ghost@example.org", "abc12345")
	if domain.KindOf(err) != domain.ErrorKindAccessDenied || !domain.IsRecoverable(err) {
		t.Fatalf("expected recoverable access denied, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	policy := domain.DefaultFacilityConfiguration()
	policy.SessionTimeoutMinutes = 15
	svc, clock := newTestService(t, policy)
	signUp(t, svc, "keeper@example.org", "abc12345")
	session, err := svc.SignIn(ctx, "keeper@example.org", "abc12345")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	clock.Advance(14 * time.Minute)
	if _, err := svc.CurrentUser(ctx, session.Token); err != nil {
		t.Fatalf("session should be live: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if _, err := svc.CurrentUser(ctx, session.Token); domain.KindOf(err) != domain.ErrorKindAccessDenied {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestPasswordExpiry(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t, domain.DefaultFacilityConfiguration())
	signUp(t, svc, "keeper@example.org", "abc12345")
	clock.Advance(91 * 24 * time.Hour)
	if _, err := svc.SignIn(ctx, "keeper@example.org", "abc12345"); err == nil || !strings.Contains(err.Error(), "password expired") {
		t.Fatalf("expected password expired, got %v", err)
	}
}

func TestChangePasswordEndsSessions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, domain.DefaultFacilityConfiguration())
	user := signUp(t, svc, "keeper@example.org", "abc12345")
	session, err := svc.SignIn(ctx, "keeper@example.org", "abc12345")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "nope0000", "xyz98765"); domain.KindOf(err) != domain.ErrorKindAccessDenied {
		t.Fatalf("expected access denied for wrong current password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "abc12345", "weak"); domain.KindOf(err) != domain.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "abc12345", "xyz98765"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, session.Token); domain.KindOf(err) != domain.ErrorKindAccessDenied {
		t.Fatalf("expected session ended, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "keeper@example.org", "xyz98765"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
	if err := svc.ChangePassword(ctx, "user_1_0001", "a", "b"); domain.KindOf(err) != domain.ErrorKindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetPolicy(t *testing.T) {
	svc, _ := newTestService(t, domain.DefaultFacilityConfiguration())
	if err := svc.SetPolicy(domain.SecureFacilityConfiguration()); err != nil {
		t.Fatalf("set policy: %v", err)
	}
	if svc.Policy().MinPasswordLength != 14 {
		t.Fatalf("policy not applied: %+v", svc.Policy())
	}
	bad := domain.DefaultFacilityConfiguration()
	bad.SessionTimeoutMinutes = 5
	if err := svc.SetPolicy(bad); domain.KindOf(err) != domain.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if svc.Policy().MinPasswordLength != 14 {
		t.Fatalf("rejected policy must not be applied")
	}
}

func TestCurrentUserRejectsForeignTokens(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t, domain.DefaultFacilityConfiguration())
	other := NewTokenIssuer(strings.Repeat("z", 32), "vivariumcore-test")
	token, _, err := other.Issue(User{ID: "user_1_0001", Email: "x@example.org"}, clock.Now(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, token); domain.KindOf(err) != domain.ErrorKindAccessDenied {
		t.Fatalf("expected access denied for foreign signature, got %v", err)
	}
	if err := svc.SignOut(ctx, "garbage"); domain.KindOf(err) != domain.ErrorKindAccessDenied {
		t.Fatalf("expected access denied for garbage token, got %v", err)
	}
}

func TestSessionCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, domain.DefaultFacilityConfiguration(), WithSessionCapacity(1))
	signUp(t, svc, "keeper@example.org", "abc12345")
	first, err := svc.SignIn(ctx, "keeper@example.org", "abc12345")
	if err != nil {
		t.Fatalf("first sign in: %v", err)
	}
	second, err := svc.SignIn(ctx, "keeper@example.org", "abc12345")
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, first.Token); err == nil {
		t.Fatalf("expected first session evicted")
	}
	if _, err := svc.CurrentUser(ctx, second.Token); err != nil {
		t.Fatalf("second session: %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	svc, _ := newTestService(t, domain.DefaultFacilityConfiguration())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.SignUp(ctx, "a@example.org", "abc12345", "A", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "a@example.org", "abc12345"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestOverlongPasswordIsValidationFailure(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, domain.DefaultFacilityConfiguration())
	overlong := strings.Repeat("a1", 40)

	_, err := svc.SignUp(ctx, "keeper@example.org", overlong, "Dr. Keeper", "")
	var failed *domain.ValidationFailedError
	if !errors.As(err, &failed) || domain.KindOf(err) != domain.ErrorKindValidation {
		t.Fatalf("expected validation failure, got %v", err)
	}

	user := signUp(t, svc, "keeper@example.org", "abc12345")
	if err := svc.ChangePassword(ctx, user.ID, "abc12345", overlong); domain.KindOf(err) != domain.ErrorKindValidation {
		t.Fatalf("expected validation failure on change, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "keeper@example.org", overlong); domain.KindOf(err) != domain.ErrorKindAccessDenied {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestConcurrentSignInsCountEveryFailure(t *testing.T) {
	ctx := context.Background()
	policy := domain.DefaultFacilityConfiguration()
	policy.MaxLoginAttempts = 4
	svc, _ := newTestService(t, policy)
	signUp(t, svc, "keeper@example.org", "abc12345")
	signUp(t, svc, "vet@example.org", "vet12345")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SignIn(ctx, "keeper@example.org", "wrong999")
			errs <- err
		}()
	}
	if _, err := svc.SignIn(ctx, "vet@example.org", "vet12345"); err != nil {
		t.Fatalf("other users must sign in while failures are checked: %v", err)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if domain.KindOf(err) != domain.ErrorKindAccessDenied {
			t.Fatalf("expected access denied, got %v", err)
		}
	}
	if _, err := svc.SignIn(ctx, "keeper@example.org", "abc12345"); err == nil || !strings.Contains(err.Error(), "account locked") {
		t.Fatalf("expected account locked after concurrent failures, got %v", err)
	}
}
