// Package auth implements the refresh-token lifecycle: issuance, rotation
// with reuse detection, and revocation, plus the orchestration of register,
// login, refresh and logout around it.
package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/knoxys/authcore/internal/gormw"
	"github.com/knoxys/authcore/internal/models"
	"github.com/knoxys/authcore/internal/storage"
	"github.com/knoxys/authcore/internal/tokens"
)

var (
	logger = log.With().Str("component", "auth").Logger()
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Engine rotates refresh tokens. Every token is single use: a successful
// refresh deletes the presented row and inserts its successor, and a token
// that verifies but has no row left is treated as stolen, burning every
// token the user has.
type Engine struct {
	db     *gormw.DB
	signer *tokens.Signer

	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewEngine(db *gormw.DB, signer *tokens.Signer, accessTTL, refreshTTL time.Duration) *Engine {
	return &Engine{
		db:         db,
		signer:     signer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Refresh trades a refresh token for a fresh access/refresh pair.
// claimedUserID is the identity the caller asserted elsewhere (the subject
// of the access token it presented); it must match the refresh token's own
// subject.
func (e *Engine) Refresh(presented string, claimedUserID uint) (*TokenPair, error) {
	tokenUserID, err := e.signer.Verify(presented, tokens.UseRefresh)
	if err != nil {
		logger.Info().Err(err).Msg("Refresh with unverifiable token")
		return nil, ErrInvalidToken
	}

	if tokenUserID != claimedUserID {
		// Smells like session fixation or token confusion. Revoke what the
		// claimed identity holds; best effort, the caller gets the same
		// answer either way.
		logger.Warn().
			Uint("claimed_user_id", claimedUserID).
			Uint("token_user_id", tokenUserID).
			Msg("Refresh token subject does not match caller, revoking caller's tokens")
		if err := storage.DeleteRefreshTokensForUser(e.db, claimedUserID); err != nil {
			logger.Error().Err(err).Uint("user_id", claimedUserID).Msg("Failed to revoke tokens after subject mismatch")
		}
		return nil, ErrUnauthorized
	}

	rows, err := storage.TakeRefreshToken(e.db, presented)
	if err != nil {
		return nil, fmt.Errorf("refresh token lookup: %w", err)
	}
	if rows == 0 {
		// This exact token string was already rotated away or never stored:
		// a replay. One stolen-and-used token burns the entire chain.
		logger.Warn().Uint("user_id", claimedUserID).Msg("Refresh token reuse detected, revoking all tokens for user")
		if err := storage.DeleteRefreshTokensForUser(e.db, claimedUserID); err != nil {
			return nil, fmt.Errorf("revoke token family: %w", err)
		}
		return nil, ErrReuseDetected
	}

	// The presented row is gone. A failure from here on leaves the user
	// with no valid refresh token, which is the intended fallback: they
	// log in again rather than retry the refresh.
	return e.IssueTokens(claimedUserID)
}

// IssueTokens mints an access/refresh pair and persists the refresh token.
// Used at login and registration time and by Refresh for the successor pair.
func (e *Engine) IssueTokens(userID uint) (*TokenPair, error) {
	access, err := e.signer.Sign(userID, tokens.UseAccess, e.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := e.signer.Sign(userID, tokens.UseRefresh, e.refreshTTL)
	if err != nil {
		return nil, err
	}

	if _, err := e.CreateToken(userID, refresh, time.Now().Add(e.refreshTTL)); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// CreateToken inserts one refresh-token record.
func (e *Engine) CreateToken(userID uint, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	record := &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if err := storage.AddRefreshToken(e.db, record); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}
	return record, nil
}

// DeleteAllTokens revokes every refresh token a user has: reuse detection,
// logout-everywhere and password changes all end up here. Idempotent.
func (e *Engine) DeleteAllTokens(userID uint) error {
	if err := storage.DeleteRefreshTokensForUser(e.db, userID); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	return nil
}

// Revoke verifies a refresh token and deletes its record. A token that is
// already gone is fine: logging out twice is not a replay attack.
func (e *Engine) Revoke(presented string) error {
	if _, err := e.signer.Verify(presented, tokens.UseRefresh); err != nil {
		logger.Info().Err(err).Msg("Logout with unverifiable token")
		return ErrInvalidToken
	}

	if _, err := storage.TakeRefreshToken(e.db, presented); err != nil {
		return fmt.Errorf("refresh token delete: %w", err)
	}
	return nil
}
