package models

import (
	"crypto/rand"
	"math/big"
	"time"

	"gorm.io/gorm"
)

// ShortCodeLength is the length of generated short codes.
const ShortCodeLength = 8

const shortCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ShortenedURL represents one short link owned by a user
type ShortenedURL struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	OriginalURL string     `json:"original_url" gorm:"not null"`
	ShortCode   string     `json:"short_code" gorm:"uniqueIndex;size:10;not null"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	UserID      string     `json:"-" gorm:"column:user_id;index"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	ClickCount  int64      `json:"click_count" gorm:"default:0"`
	ExpiresAt   *time.Time `json:"expires_at"`
	gorm.Model
}

// TableName specifies the table name for ShortenedURL Model
func (ShortenedURL) TableName() string {
	return "shortened_urls"
}

// Expired reports whether the link has an expiry in the past.
func (u *ShortenedURL) Expired() bool {
	return u.ExpiresAt != nil && time.Now().After(*u.ExpiresAt)
}

// NewShortCode returns a random alphanumeric short code. Uniqueness is the
// caller's job: retry on a database collision.
func NewShortCode() string {
	code := make([]byte, ShortCodeLength)
	alphabetLen := big.NewInt(int64(len(shortCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a fixed offset of the loop index.
			code[i] = shortCodeAlphabet[i%len(shortCodeAlphabet)]
			continue
		}
		code[i] = shortCodeAlphabet[n.Int64()]
	}
	return string(code)
}
