package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/identity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserStore is a gorm-backed user store.
type UserStore struct {
	db *gorm.DB
}

var (
	_ goSession.UserProvider        = (*UserStore)(nil)
	_ goSession.AccountLinker       = (*UserStore)(nil)
	_ goSession.PasswordHashUpdater = (*UserStore)(nil)
)

// New wraps db.
func New(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindUserByEmail loads a user and its linked accounts.
func (s *UserStore) FindUserByEmail(ctx context.Context, email string) (goSession.UserRecord, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return goSession.UserRecord{}, goSession.ErrUserNotFound
	}

	var user User
	err := s.db.WithContext(ctx).
		Preload("Accounts", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		return goSession.UserRecord{}, lookupError(err)
	}
	return toRecord(user), nil
}

// LinkOAuthAccount resolves the user for a provider login and attaches the
// provider account to it.
//
// An account already linked as (provider, profile.Sub) always resolves to its
// owner, whatever email the profile carries now. Otherwise the user is found
// by email, or created. An existing user is only linked when the provider
// reports the email as verified; an unverified claim on someone else's email
// yields goSession.ErrWrongLoginMethod. Existing users keep their name and
// picture unless those are empty.
func (s *UserStore) LinkOAuthAccount(ctx context.Context, provider string, profile identity.Profile) (goSession.UserRecord, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	email := identity.NormalizeEmail(profile.Email)
	if provider == "" || profile.Sub == "" || email == "" {
		return goSession.UserRecord{}, errors.New("store: provider, sub and email are required")
	}

	var user User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := linkedOwner(tx, provider, profile.Sub)
		switch {
		case err == nil:
			return loadLinked(tx, &user, owner, profile, email)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		err = tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = User{
				ID:            uuid.NewString(),
				Email:         email,
				FullName:      profile.Name,
				Picture:       profile.Picture,
				EmailVerified: profile.EmailVerified,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case !profile.EmailVerified:
			return errUnverifiedLink
		default:
			if err := fillProfile(tx, &user, profile, true); err != nil {
				return err
			}
		}

		account := Account{
			UserID:            user.ID,
			Provider:          provider,
			ProviderAccountID: profile.Sub,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_account_id"}},
			DoNothing: true,
		}).Create(&account)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// linked concurrently; the first owner wins
			owner, err := linkedOwner(tx, provider, profile.Sub)
			if err != nil {
				return err
			}
			user = User{}
			return tx.Preload("Accounts").First(&user, "id = ?", owner).Error
		}

		return tx.Preload("Accounts").First(&user, "id = ?", user.ID).Error
	})
	if errors.Is(err, goSession.ErrWrongLoginMethod) {
		return goSession.UserRecord{}, err
	}
	if err != nil {
		return goSession.UserRecord{}, fmt.Errorf("%w: link account: %v", goSession.ErrUserStoreUnavailable, err)
	}
	return toRecord(user), nil
}

var errUnverifiedLink = fmt.Errorf("%w: provider email is not verified", goSession.ErrWrongLoginMethod)

func linkedOwner(tx *gorm.DB, provider, sub string) (string, error) {
	var account Account
	err := tx.Where("provider = ? AND provider_account_id = ?", provider, sub).First(&account).Error
	if err != nil {
		return "", err
	}
	return account.UserID, nil
}

func loadLinked(tx *gorm.DB, user *User, owner string, profile identity.Profile, email string) error {
	if err := tx.First(user, "id = ?", owner).Error; err != nil {
		return err
	}
	if err := fillProfile(tx, user, profile, user.Email == email); err != nil {
		return err
	}
	id := user.ID
	*user = User{}
	return tx.Preload("Accounts").First(user, "id = ?", id).Error
}

// fillProfile copies profile fields the user is missing. sameEmail gates the
// verified flag, which only follows a provider vouching for this address.
func fillProfile(tx *gorm.DB, user *User, profile identity.Profile, sameEmail bool) error {
	updates := map[string]any{}
	if user.FullName == "" && profile.Name != "" {
		updates["full_name"] = profile.Name
	}
	if user.Picture == "" && profile.Picture != "" {
		updates["picture"] = profile.Picture
	}
	if sameEmail && !user.EmailVerified && profile.EmailVerified {
		updates["email_verified"] = true
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(user).Updates(updates).Error
}

// UpdatePasswordHash replaces the stored hash for userID.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("password_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", goSession.ErrUserStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return goSession.ErrUserNotFound
	}
	return nil
}

// CreateUser inserts a credentials user. passwordHash must already be hashed.
func (s *UserStore) CreateUser(ctx context.Context, email, fullName, passwordHash string, verified bool) (goSession.UserRecord, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return goSession.UserRecord{}, errors.New("store: email is required")
	}
	user := User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  passwordHash,
		FullName:      fullName,
		EmailVerified: verified,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return goSession.UserRecord{}, fmt.Errorf("create user: %w", err)
	}
	return toRecord(user), nil
}

// DeleteUser removes a user and its linked accounts.
func (s *UserStore) DeleteUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&Account{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", userID).Delete(&User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return goSession.ErrUserNotFound
		}
		return nil
	})
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return goSession.ErrUserNotFound
	}
	return fmt.Errorf("%w: %v", goSession.ErrUserStoreUnavailable, err)
}

func toRecord(u User) goSession.UserRecord {
	rec := goSession.UserRecord{
		ID:            u.ID,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		FullName:      u.FullName,
		Picture:       u.Picture,
		EmailVerified: u.EmailVerified,
	}
	for _, a := range u.Accounts {
		rec.Accounts = append(rec.Accounts, goSession.LinkedAccount{
			Provider:          a.Provider,
			ProviderAccountID: a.ProviderAccountID,
		})
	}
	return rec
}
