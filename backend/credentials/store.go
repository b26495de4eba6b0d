// Package credentials owns user records: registration, lookup and removal.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/backupcodes"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/database"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/password"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/totp"

	"gorm.io/gorm"
)

type Options struct {
	// IssuerLabel names the application inside authenticator apps.
	IssuerLabel     string
	BackupCodeCount int
	Logger          *slog.Logger
}

type Store struct {
	db     *gorm.DB
	hasher password.Hasher
	issuer *totp.Issuer
	codes  *backupcodes.Manager
	label  string
	count  int
	log    *slog.Logger
}

func NewStore(db *gorm.DB, hasher password.Hasher, issuer *totp.Issuer, codes *backupcodes.Manager, opts Options) *Store {
	s := &Store{
		db:     db,
		hasher: hasher,
		issuer: issuer,
		codes:  codes,
		label:  opts.IssuerLabel,
		count:  opts.BackupCodeCount,
		log:    opts.Logger,
	}
	if s.label == "" {
		s.label = "SD-2025-Senhas"
	}
	if s.count <= 0 {
		s.count = backupcodes.DefaultCount
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// RegistrationOutcome carries the second-factor material a new user needs.
// It is produced once and cannot be recovered later.
type RegistrationOutcome struct {
	UserID             uint     `json:"-"`
	SecondFactorSecret string   `json:"second_factor_secret,omitempty"`
	ProvisioningURI    string   `json:"provisioning_uri,omitempty"`
	BackupCodes        []string `json:"backup_codes,omitempty"`
}

// Enabled reports whether the outcome carries second-factor material.
func (o *RegistrationOutcome) Enabled() bool {
	return o != nil && o.SecondFactorSecret != ""
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. With enableSecondFactor it also issues a TOTP
// secret and a batch of backup codes, stored in the same transaction as the
// user row.
func (s *Store) Register(ctx context.Context, email, plain string, enableSecondFactor bool) (*RegistrationOutcome, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrValidation)
	}
	if strings.TrimSpace(plain) == "" {
		return nil, fmt.Errorf("%w: password is required", models.ErrValidation)
	}

	existing, err := s.FetchByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log.Warn("registration failed: email exists", "source", "credentials", "email", email)
		return nil, models.ErrDuplicateUser
	}

	hashed, err := s.hasher.Hash(plain)
	if errors.Is(err, password.ErrTooLong) {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{Email: email, PasswordHash: hashed}
	outcome := &RegistrationOutcome{}

	// Secrets and code hashes are prepared before the transaction so the
	// write lock is not held while bcrypt runs.
	var batch *backupcodes.Batch
	if enableSecondFactor {
		secret, err := s.issuer.IssueSecret()
		if err != nil {
			return nil, err
		}
		uri, err := s.issuer.ProvisioningURI(secret, email, s.label)
		if err != nil {
			return nil, err
		}
		batch, err = s.codes.NewBatch(s.count)
		if err != nil {
			return nil, err
		}
		user.SecondFactorEnabled = true
		user.SecondFactorSecret = &secret
		outcome.SecondFactorSecret = secret
		outcome.ProvisioningURI = uri
		outcome.BackupCodes = batch.Plain
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if batch != nil {
			return s.codes.SaveBatch(tx, user.ID, batch)
		}
		return nil
	})
	if database.IsDuplicate(err) {
		s.log.Warn("registration failed: lost unique email race", "source", "credentials", "email", email)
		return nil, models.ErrDuplicateUser
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	outcome.UserID = user.ID
	s.log.Info("user registered", "source", "credentials", "user_id", user.ID,
		"email", email, "second_factor", enableSecondFactor)
	return outcome, nil
}

// FetchByEmail looks a user up case-insensitively. A missing user is
// (nil, nil); only storage faults are errors.
func (s *Store) FetchByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return &user, nil
}

// List returns every user ordered by id.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Delete removes the user and, through the foreign key cascade, all of its
// backup codes. It reports whether a user was removed.
func (s *Store) Delete(ctx context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)
	res := s.db.WithContext(ctx).Where("email = ?", email).Delete(&models.User{})
	if res.Error != nil {
		return false, fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.log.Info("user deleted", "source", "credentials", "email", email)
	return true, nil
}
