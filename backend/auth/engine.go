// Package auth decides logins: password, then TOTP, then backup code.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/backupcodes"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/credentials"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/password"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/totp"
)

type Options struct {
	// Now is the clock used for TOTP checks. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

type Engine struct {
	store  *credentials.Store
	hasher password.Hasher
	issuer *totp.Issuer
	codes  *backupcodes.Manager
	now    func() time.Time
	log    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewEngine(store *credentials.Store, hasher password.Hasher, issuer *totp.Issuer, codes *backupcodes.Manager, opts Options) *Engine {
	e := &Engine{
		store:  store,
		hasher: hasher,
		issuer: issuer,
		codes:  codes,
		now:    opts.Now,
		log:    opts.Logger,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Login reports whether the credentials authenticate. Every kind of
// rejection is plain false; err is non-nil only for storage faults.
func (e *Engine) Login(ctx context.Context, email, plain, secondFactorCode string) (bool, error) {
	a := NewAttempt(email, plain, secondFactorCode)
	if err := e.Run(ctx, a); err != nil {
		return false, err
	}

	if a.State == StateAuthenticated {
		e.log.Info("login succeeded", "source", "auth", "user_id", a.userID, "backup_code", a.UsedBackupCode)
		return true, nil
	}
	if a.userID != 0 {
		e.log.Warn("login rejected", "source", "auth", "user_id", a.userID, "reason", string(a.Reason))
	} else {
		e.log.Warn("login rejected", "source", "auth", "reason", string(a.Reason))
	}
	return false, nil
}

// Run steps a until it reaches a terminal state.
func (e *Engine) Run(ctx context.Context, a *Attempt) error {
	for !a.State.Terminal() {
		if err := e.Step(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Step performs the single transition out of a.State.
func (e *Engine) Step(ctx context.Context, a *Attempt) error {
	switch a.State {
	case StateUnauthenticated:
		return e.checkPassword(ctx, a)
	case StatePasswordVerified:
		e.routeSecondFactor(a)
	case StateSecondFactorPending:
		e.checkTOTP(a)
	case StateBackupCodePending:
		return e.checkBackupCode(ctx, a)
	default:
		return fmt.Errorf("auth: no transition out of state %s", a.State)
	}
	return nil
}

// checkPassword: Unauthenticated -> PasswordVerified | Rejected.
func (e *Engine) checkPassword(ctx context.Context, a *Attempt) error {
	user, err := e.store.FetchByEmail(ctx, a.Email)
	if err != nil {
		return err
	}
	if user == nil {
		// Burn one verification so an unknown email costs what a bad password does
		e.hasher.Verify(e.dummy(), a.Password)
		a.reject(ReasonUnknownUser)
		return nil
	}

	a.userID = user.ID
	if !e.hasher.Verify(user.PasswordHash, a.Password) {
		a.reject(ReasonBadPassword)
		return nil
	}

	a.secondFactor = user.SecondFactorEnabled
	if user.SecondFactorSecret != nil {
		a.secret = *user.SecondFactorSecret
	}
	a.State = StatePasswordVerified
	return nil
}

// routeSecondFactor: PasswordVerified -> Authenticated | SecondFactorPending.
func (e *Engine) routeSecondFactor(a *Attempt) {
	if !a.secondFactor {
		a.State = StateAuthenticated
		return
	}
	a.State = StateSecondFactorPending
}

// checkTOTP: SecondFactorPending -> Authenticated | BackupCodePending.
func (e *Engine) checkTOTP(a *Attempt) {
	if e.issuer.Verify(a.secret, a.SecondFactorCode, e.now()) {
		a.State = StateAuthenticated
		return
	}
	a.State = StateBackupCodePending
}

// checkBackupCode: BackupCodePending -> Authenticated | Rejected.
func (e *Engine) checkBackupCode(ctx context.Context, a *Attempt) error {
	ok, err := e.codes.Consume(ctx, a.userID, a.SecondFactorCode)
	if err != nil {
		return err
	}
	if !ok {
		a.reject(ReasonBadSecondFactor)
		return nil
	}
	a.UsedBackupCode = true
	a.State = StateAuthenticated
	return nil
}

// RegenerateBackupCodes re-checks the password and adds count new backup
// codes. An unknown email and a wrong password both yield
// models.ErrInvalidCredentials; a user without second factor yields
// models.ErrNoSecondFactor.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, email, plain string, count int) ([]string, error) {
	user, err := e.verifiedUser(ctx, email, plain)
	if err != nil {
		return nil, err
	}
	codes, err := e.codes.Generate(ctx, user.ID, count)
	if err != nil {
		return nil, err
	}
	e.log.Info("backup codes regenerated", "source", "auth", "user_id", user.ID, "count", len(codes))
	return codes, nil
}

// RemainingBackupCodes returns how many unused backup codes the user has,
// after checking the password.
func (e *Engine) RemainingBackupCodes(ctx context.Context, email, plain string) (int64, error) {
	user, err := e.verifiedUser(ctx, email, plain)
	if err != nil {
		return 0, err
	}
	if !user.SecondFactorEnabled {
		return 0, models.ErrNoSecondFactor
	}
	return e.codes.Remaining(ctx, user.ID)
}

func (e *Engine) verifiedUser(ctx context.Context, email, plain string) (*models.User, error) {
	user, err := e.store.FetchByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		e.hasher.Verify(e.dummy(), plain)
		return nil, models.ErrInvalidCredentials
	}
	if !e.hasher.Verify(user.PasswordHash, plain) {
		e.log.Warn("password re-verification failed", "source", "auth", "user_id", user.ID)
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}

// dummy returns a hash of a throwaway value, computed on first use.
func (e *Engine) dummy() string {
	e.dummyOnce.Do(func() {
		e.dummyHash, _ = e.hasher.Hash("not-a-real-password")
	})
	return e.dummyHash
}
