package models

import "time"

// RefreshToken is one link of a user's refresh-token chain. The token string
// is stored as presented; rotation deletes the row and inserts its successor,
// so a row that is gone (and unexpired rows only) is the whole validity test.
type RefreshToken struct {
	ID        string `gorm:"primarykey"`
	UserID    uint   `gorm:"index"` // with index, cheap to revoke every token a user has
	Token     string `gorm:"uniqueIndex"`
	CreatedAt time.Time
	ExpiresAt time.Time
}
