package storage

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/knoxys/authcore/internal/gormw"
	"github.com/knoxys/authcore/internal/models"
)

var (
	logger = log.With().Str("component", "storage").Logger()
)

func AddRefreshToken(db *gormw.DB, refreshToken *models.RefreshToken) error {
	return db.Create(refreshToken).Error
}

// TakeRefreshToken deletes the unexpired row holding this exact token string
// and reports how many rows went away. Lookup and delete are one statement so
// that of two rotations racing on the same token exactly one sees rows == 1;
// the other observes the row already gone, which is the reuse signal.
func TakeRefreshToken(db *gormw.DB, token string) (int64, error) {
	res := db.Where("token = ? AND expires_at > ?", token, time.Now()).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

// DeleteRefreshTokensForUser revokes every token a user has. Idempotent,
// deleting zero rows is not an error.
func DeleteRefreshTokensForUser(db *gormw.DB, userID uint) error {
	return db.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}

func CountRefreshTokensForUser(db *gormw.DB, userID uint) (int64, error) {
	var n int64
	err := db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Count(&n).Error
	return n, err
}

// cleanupExpiredRefreshTokens drops rows that expired more than a day ago.
// Rows inside the grace day are kept so a replay of a just-expired token
// still hits the reuse detection instead of looking merely unknown.
func cleanupExpiredRefreshTokens(db *gormw.DB) error {
	yesterday := time.Now().AddDate(0, 0, -1)
	return db.Where("expires_at < ?", yesterday).Delete(&models.RefreshToken{}).Error
}

// Expired refresh token rows stay in database forever if not register a cleaner.
func RegisterRefreshTokensCleaner(scheduler gocron.Scheduler, db *gormw.DB) {
	_, _ = scheduler.NewJob(
		gocron.CronJob(
			// 4am Daily
			"0 4 * * *",
			false,
		),
		gocron.NewTask(
			func() {
				logger.Info().Msg("Cleaning up expired refresh tokens")
				if err := cleanupExpiredRefreshTokens(db); err != nil {
					logger.Error().Err(err).Msg("Failed to clean up expired refresh tokens")
				}
			},
		),
	)
}
