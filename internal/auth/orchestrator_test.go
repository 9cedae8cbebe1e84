package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glog "gorm.io/gorm/logger"

	"github.com/knoxys/authcore/internal/gormw"
	"github.com/knoxys/authcore/internal/ratelimit"
	"github.com/knoxys/authcore/internal/tokens"
)

func setupTestOrchestrator(t *testing.T, limits Limits) (*Orchestrator, *gormw.DB) {
	t.Helper()

	db, err := gormw.Open(&gormw.Config{LogLevel: glog.Silent, MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	signer := tokens.NewSigner("orchestrator-test-secret", "http://localhost:8080")
	engine := NewEngine(db, signer, 15*time.Minute, time.Hour)
	limiter := ratelimit.New(ratelimit.NewMemoryCache())

	return NewOrchestrator(db, engine, signer, limiter, limits), db
}

func roomyLimits() Limits {
	policy := LimitPolicy{MaxAttempts: 100, Window: time.Minute}
	return Limits{Register: policy, Login: policy, Refresh: policy}
}

func TestRegisterThenLogin(t *testing.T) {
	o, _ := setupTestOrchestrator(t, roomyLimits())
	ctx := context.Background()

	user, pair, res, err := o.Register(ctx, "alice", "Alice", "alice@example.com", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NotZero(t, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// by username
	_, pair, _, err = o.Login(ctx, "alice", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)

	// by email
	_, _, _, err = o.Login(ctx, "alice@example.com", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)
}

func TestLoginGenericFailure(t *testing.T) {
	o, _ := setupTestOrchestrator(t, roomyLimits())
	ctx := context.Background()

	_, _, _, err := o.Register(ctx, "alice", "Alice", "alice@example.com", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)

	// unknown user and wrong password look the same
	_, _, _, errUnknown := o.Login(ctx, "nobody", "ValidP@ss1", "1.2.3.4")
	_, _, _, errWrongPw := o.Login(ctx, "alice", "WrongP@ss1", "1.2.3.4")
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrongPw, ErrInvalidCredentials)
	assert.Equal(t, errUnknown, errWrongPw)
}

func TestRegisterValidation(t *testing.T) {
	o, _ := setupTestOrchestrator(t, roomyLimits())
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"username too short", "al", "alice@example.com", "ValidP@ss1"},
		{"username bad chars", "alice$$$", "alice@example.com", "ValidP@ss1"},
		{"bad email", "alice", "not-an-email", "ValidP@ss1"},
		{"weak password", "alice", "alice@example.com", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := o.Register(ctx, tt.username, "", tt.email, tt.password, "1.2.3.4")
			assert.ErrorIs(t, err, ErrInvalidRegistration)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	o, _ := setupTestOrchestrator(t, roomyLimits())
	ctx := context.Background()

	_, _, _, err := o.Register(ctx, "alice", "Alice", "alice@example.com", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)

	_, _, _, err = o.Register(ctx, "alice", "", "other@example.com", "ValidP@ss1", "1.2.3.4")
	assert.ErrorIs(t, err, ErrUserExists)

	_, _, _, err = o.Register(ctx, "bobby", "", "alice@example.com", "ValidP@ss1", "1.2.3.4")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginRateLimitBlocksAndCredentialsDoNotLeak(t *testing.T) {
	limits := roomyLimits()
	limits.Login = LimitPolicy{MaxAttempts: 2, Window: time.Minute, BlockFor: time.Minute}
	o, _ := setupTestOrchestrator(t, limits)
	ctx := context.Background()

	_, _, _, err := o.Register(ctx, "alice", "", "alice@example.com", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)

	_, _, _, err = o.Login(ctx, "alice", "WrongP@ss1", "9.9.9.9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = o.Login(ctx, "alice", "WrongP@ss1", "9.9.9.9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// third attempt is over the limit, even with the right password
	_, _, res, err := o.Login(ctx, "alice", "ValidP@ss1", "9.9.9.9")
	assert.ErrorIs(t, err, ErrRateLimited)
	require.NotNil(t, res)
	assert.True(t, res.Blocked)

	// another ip is not affected
	_, _, _, err = o.Login(ctx, "alice", "ValidP@ss1", "5.5.5.5")
	assert.NoError(t, err)
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	limits := roomyLimits()
	limits.Login = LimitPolicy{MaxAttempts: 3, Window: time.Minute, BlockFor: time.Minute}
	o, _ := setupTestOrchestrator(t, limits)
	ctx := context.Background()

	_, _, _, err := o.Register(ctx, "alice", "", "alice@example.com", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)

	_, _, _, err = o.Login(ctx, "alice", "WrongP@ss1", "9.9.9.9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = o.Login(ctx, "alice", "WrongP@ss1", "9.9.9.9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = o.Login(ctx, "alice", "ValidP@ss1", "9.9.9.9")
	require.NoError(t, err)

	// failed-attempt history is gone
	_, _, res, err := o.Login(ctx, "alice", "WrongP@ss1", "9.9.9.9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Remaining)
}

func TestOrchestratorRefreshAndLogout(t *testing.T) {
	o, _ := setupTestOrchestrator(t, roomyLimits())
	ctx := context.Background()

	user, pair, _, err := o.Register(ctx, "alice", "", "alice@example.com", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)

	rotated, _, err := o.Refresh(ctx, pair.RefreshToken, user.ID, "1.2.3.4")
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	require.NoError(t, o.Logout(rotated.RefreshToken))

	// the logged-out token no longer rotates
	_, _, err = o.Refresh(ctx, rotated.RefreshToken, user.ID, "1.2.3.4")
	assert.ErrorIs(t, err, ErrReuseDetected)
}

func TestOrchestratorLogoutAll(t *testing.T) {
	o, db := setupTestOrchestrator(t, roomyLimits())
	ctx := context.Background()

	user, _, _, err := o.Register(ctx, "alice", "", "alice@example.com", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)
	_, _, _, err = o.Login(ctx, "alice", "ValidP@ss1", "1.2.3.4")
	require.NoError(t, err)

	require.NoError(t, o.LogoutAll(user.ID))

	n := liveTokens(t, db, user.ID)
	assert.Equal(t, int64(0), n)
}

func TestIdentityFromAccessToken(t *testing.T) {
	o, _ := setupTestOrchestrator(t, roomyLimits())
	signer := tokens.NewSigner("orchestrator-test-secret", "http://localhost:8080")

	live, err := signer.Sign(42, tokens.UseAccess, time.Hour)
	require.NoError(t, err)
	expired, err := signer.Sign(42, tokens.UseAccess, -time.Minute)
	require.NoError(t, err)

	userID, err := o.IdentityFromAccessToken(live, false)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	_, err = o.IdentityFromAccessToken(expired, false)
	assert.ErrorIs(t, err, ErrInvalidToken)

	userID, err = o.IdentityFromAccessToken(expired, true)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	// refresh token never passes as an access token
	refresh, err := signer.Sign(42, tokens.UseRefresh, time.Hour)
	require.NoError(t, err)
	_, err = o.IdentityFromAccessToken(refresh, true)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
