package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/badoux/checkmail"
	"gorm.io/gorm"

	"github.com/knoxys/authcore/internal/gormw"
	"github.com/knoxys/authcore/internal/models"
	"github.com/knoxys/authcore/internal/ratelimit"
	"github.com/knoxys/authcore/internal/storage"
	"github.com/knoxys/authcore/internal/tokens"
)

// LimitPolicy is one endpoint class's rate limit.
type LimitPolicy struct {
	MaxAttempts int
	Window      time.Duration
	BlockFor    time.Duration
}

type Limits struct {
	Register LimitPolicy
	Login    LimitPolicy
	Refresh  LimitPolicy
}

// Orchestrator wires the rotation engine, the rate limiter and user storage
// into the register/login/refresh/logout behaviors the HTTP layer exposes.
// All dependencies are injected; there are no package-level instances.
type Orchestrator struct {
	db      *gormw.DB
	engine  *Engine
	signer  *tokens.Signer
	limiter *ratelimit.Limiter
	limits  Limits
}

func NewOrchestrator(db *gormw.DB, engine *Engine, signer *tokens.Signer, limiter *ratelimit.Limiter, limits Limits) *Orchestrator {
	return &Orchestrator{
		db:      db,
		engine:  engine,
		signer:  signer,
		limiter: limiter,
		limits:  limits,
	}
}

func (o *Orchestrator) Limits() Limits {
	return o.limits
}

// gate consumes one attempt for key. The returned result is non-nil even
// when the attempt is rejected, so callers can derive rate-limit headers.
func (o *Orchestrator) gate(ctx context.Context, key string, policy LimitPolicy) (*ratelimit.Result, error) {
	res, err := o.limiter.Increment(ctx, ratelimit.Options{
		Key:         key,
		MaxAttempts: policy.MaxAttempts,
		Window:      policy.Window,
		BlockFor:    policy.BlockFor,
	})
	if err != nil {
		// malformed options, a programming error
		return nil, err
	}
	if res.Blocked {
		return res, ErrRateLimited
	}
	return res, nil
}

// Register creates a user and logs them in. One limiter slot per attempt,
// keyed by caller ip.
func (o *Orchestrator) Register(ctx context.Context, username, name, email, password, ip string) (*models.User, *TokenPair, *ratelimit.Result, error) {
	res, err := o.gate(ctx, "register:"+ip, o.limits.Register)
	if err != nil {
		return nil, nil, res, err
	}

	if !usernameRegex.MatchString(username) {
		return nil, nil, res, fmt.Errorf("%w: username must be 4-12 characters of letters, numbers, - or _", ErrInvalidRegistration)
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, nil, res, fmt.Errorf("%w: invalid email address", ErrInvalidRegistration)
	}
	if err := validatePassword(password); err != nil {
		return nil, nil, res, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}

	if _, err := storage.GetUserByUsername(o.db, username); err == nil {
		return nil, nil, res, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, res, fmt.Errorf("user lookup: %w", err)
	}
	if _, err := storage.GetUserByEmail(o.db, email); err == nil {
		return nil, nil, res, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, res, fmt.Errorf("user lookup: %w", err)
	}

	user := &models.User{
		Username: username,
		Name:     name,
		Email:    email,
		Roles:    "user",
	}
	if err := user.SetPassword(password); err != nil {
		return nil, nil, res, fmt.Errorf("hash password: %w", err)
	}
	if err := storage.CreateUser(o.db, user); err != nil {
		return nil, nil, res, fmt.Errorf("create user: %w", err)
	}

	logger.Info().Str("username", username).Msg("User registered")

	pair, err := o.engine.IssueTokens(user.ID)
	if err != nil {
		return nil, nil, res, err
	}
	return user, pair, res, nil
}

// Login checks credentials and issues a token pair. The limiter key is
// ip + identifier so one address cannot burn someone else's window from
// afar, and a success clears the failed-attempt history.
func (o *Orchestrator) Login(ctx context.Context, identifier, password, ip string) (*models.User, *TokenPair, *ratelimit.Result, error) {
	key := "login:" + ip + ":" + identifier
	res, err := o.gate(ctx, key, o.limits.Login)
	if err != nil {
		return nil, nil, res, err
	}

	user, err := storage.GetUserByUsernameOrEmail(o.db, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Generic message for security reasons
			return nil, nil, res, ErrInvalidCredentials
		}
		return nil, nil, res, fmt.Errorf("user lookup: %w", err)
	}

	if !user.CheckPassword(password) {
		return nil, nil, res, ErrInvalidCredentials
	}

	if err := o.limiter.Reset(ctx, key); err != nil {
		logger.Error().Err(err).Msg("Failed to reset login rate limit counter")
	}

	pair, err := o.engine.IssueTokens(user.ID)
	if err != nil {
		return nil, nil, res, err
	}
	return user, pair, res, nil
}

// Refresh rate limits by ip, then rotates.
func (o *Orchestrator) Refresh(ctx context.Context, presented string, claimedUserID uint, ip string) (*TokenPair, *ratelimit.Result, error) {
	res, err := o.gate(ctx, "refresh:"+ip, o.limits.Refresh)
	if err != nil {
		return nil, res, err
	}

	pair, err := o.engine.Refresh(presented, claimedUserID)
	return pair, res, err
}

// Logout revokes the presented refresh token only.
func (o *Orchestrator) Logout(presented string) error {
	return o.engine.Revoke(presented)
}

// LogoutAll revokes every token the user has.
func (o *Orchestrator) LogoutAll(userID uint) error {
	return o.engine.DeleteAllTokens(userID)
}

// IdentityFromAccessToken reads the user id out of an access token. With
// allowExpired the signature must still verify but the expiry is ignored;
// the refresh endpoint uses that, since its callers by definition hold an
// access token that just ran out.
func (o *Orchestrator) IdentityFromAccessToken(raw string, allowExpired bool) (uint, error) {
	var (
		userID uint
		err    error
	)
	if allowExpired {
		userID, err = o.signer.VerifyAllowExpired(raw, tokens.UseAccess)
	} else {
		userID, err = o.signer.Verify(raw, tokens.UseAccess)
	}
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
