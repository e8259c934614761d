package store

import "time"

// User is the persisted user. PasswordHash is empty for users that only
// sign in through an OAuth provider.
type User struct {
	ID            string    `gorm:"primaryKey;type:text"`
	Email         string    `gorm:"uniqueIndex;size:320;not null"`
	PasswordHash  string    `gorm:"size:255;not null;default:''"`
	FullName      string    `gorm:"size:120"`
	Picture       string    `gorm:"size:2048"`
	EmailVerified bool      `gorm:"not null;default:false"`
	Accounts      []Account `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (User) TableName() string { return "users" }

// Account links a user to an external provider identity.
type Account struct {
	ID                uint   `gorm:"primaryKey"`
	UserID            string `gorm:"type:text;index;not null"`
	Provider          string `gorm:"size:64;not null;uniqueIndex:idx_accounts_provider_account"`
	ProviderAccountID string `gorm:"size:255;not null;uniqueIndex:idx_accounts_provider_account"`
	CreatedAt         time.Time
}

func (Account) TableName() string { return "accounts" }
