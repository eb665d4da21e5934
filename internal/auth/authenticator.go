package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budget/internal/core"
	"budget/internal/storage"
)

// UserStorage is the persistence the authenticator needs.
type UserStorage interface {
	CreateUser(ctx context.Context, username, passwordHash, emailHash string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserByEmailHash(ctx context.Context, emailHash string) (core.User, error)
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateUserEmailHash(ctx context.Context, userID int64, emailHash string) error
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
	CreateResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error)
	GetValidResetToken(ctx context.Context, tokenHash string, now time.Time) (core.PasswordResetToken, error)
	MarkResetTokenUsed(ctx context.Context, id int64) error
	EnsureDefaultCategories(ctx context.Context, userID int64) error
}

// ResetNotifier delivers password reset links to an external mailer.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, userID int64, username, token string, expiresAt time.Time) error
}

type Config struct {
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
	BcryptCost    int // 0 means bcrypt.DefaultCost
}

type Authenticator struct {
	users    UserStorage
	sessions SessionStore
	notifier ResetNotifier
	cfg      Config
	now      func() time.Time
}

// NewAuthenticator wires user storage and a session store. notifier may be nil.
func NewAuthenticator(users UserStorage, sessions SessionStore, notifier ResetNotifier, cfg Config) *Authenticator {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	return &Authenticator{users: users, sessions: sessions, notifier: notifier, cfg: cfg, now: time.Now}
}

func (a *Authenticator) SessionTTL() time.Duration { return a.cfg.SessionTTL }

// Register validates and creates a user, then opens a session for it.
func (a *Authenticator) Register(ctx context.Context, username, password, confirm string) (string, core.User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateRegistration(username, password, confirm); err != nil {
		return "", core.User{}, err
	}
	hash, err := HashPassword(password, a.cfg.BcryptCost)
	if err != nil {
		return "", core.User{}, err
	}
	id, err := a.users.CreateUser(ctx, username, hash, "")
	if errors.Is(err, storage.ErrDuplicate) {
		return "", core.User{}, ErrUsernameTaken
	}
	if err != nil {
		return "", core.User{}, fmt.Errorf("create user: %w", err)
	}

	user := core.User{ID: id, Username: username, PasswordHash: hash}
	token, err := a.openSession(ctx, id)
	if err != nil {
		return "", core.User{}, err
	}
	return token, user, nil
}

// Login checks credentials and opens a session.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, core.User, error) {
	user, err := a.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return "", core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", core.User{}, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		slog.WarnContext(ctx, "Failed login", "user_id", user.ID)
		return "", core.User{}, ErrInvalidCredentials
	}

	token, err := a.openSession(ctx, user.ID)
	if err != nil {
		return "", core.User{}, err
	}
	if err := a.users.UpdateLastLogin(ctx, user.ID, a.now()); err != nil {
		slog.WarnContext(ctx, "Failed to record last login", "user_id", user.ID, "error", err)
	}
	// Accounts created before a default category existed get it on login.
	if err := a.users.EnsureDefaultCategories(ctx, user.ID); err != nil {
		slog.WarnContext(ctx, "Failed to seed default categories", "user_id", user.ID, "error", err)
	}
	return token, user, nil
}

func (a *Authenticator) openSession(ctx context.Context, userID int64) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := a.sessions.Set(ctx, token, userID, a.cfg.SessionTTL); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

func (a *Authenticator) Logout(ctx context.Context, token string) error {
	if token == "" || token == DemoToken {
		return nil
	}
	return a.sessions.Delete(ctx, token)
}

// UserFromToken resolves a session cookie to a user id.
func (a *Authenticator) UserFromToken(ctx context.Context, token string) (int64, error) {
	if token == "" || token == DemoToken {
		return 0, ErrNoSession
	}
	return a.sessions.Get(ctx, token)
}

func (a *Authenticator) User(ctx context.Context, userID int64) (core.User, error) {
	return a.users.GetUserByID(ctx, userID)
}

// SetEmail stores the hash of the recovery address. An empty email clears it.
func (a *Authenticator) SetEmail(ctx context.Context, userID int64, email string) error {
	return a.users.UpdateUserEmailHash(ctx, userID, HashEmail(email))
}

// RequestPasswordReset creates a reset token for the user registered with
// email and hands it to the notifier. Unknown addresses return an empty
// token and no error so callers cannot discover accounts.
func (a *Authenticator) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	hash := HashEmail(email)
	if hash == "" {
		return "", nil
	}
	user, err := a.users.GetUserByEmailHash(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup email: %w", err)
	}

	token, err := NewToken()
	if err != nil {
		return "", err
	}
	expires := a.now().Add(a.cfg.ResetTokenTTL)
	if _, err := a.users.CreateResetToken(ctx, user.ID, HashToken(token), expires); err != nil {
		return "", fmt.Errorf("create reset token: %w", err)
	}

	if a.notifier != nil {
		if err := a.notifier.NotifyPasswordReset(ctx, user.ID, user.Username, token, expires); err != nil {
			slog.ErrorContext(ctx, "Failed to publish password reset", "user_id", user.ID, "error", err)
		}
	}
	slog.InfoContext(ctx, "Password reset requested", "user_id", user.ID)
	return token, nil
}

// CheckResetToken returns the stored token when it can still be redeemed.
func (a *Authenticator) CheckResetToken(ctx context.Context, token string) (core.PasswordResetToken, error) {
	if token == "" {
		return core.PasswordResetToken{}, ErrInvalidResetToken
	}
	t, err := a.users.GetValidResetToken(ctx, HashToken(token), a.now())
	if errors.Is(err, storage.ErrNotFound) {
		return t, ErrInvalidResetToken
	}
	return t, err
}

// ResetPassword redeems token once and sets the new password.
func (a *Authenticator) ResetPassword(ctx context.Context, token, password, confirm string) error {
	t, err := a.CheckResetToken(ctx, token)
	if err != nil {
		return err
	}
	if err := ValidateNewPassword(password, confirm); err != nil {
		return err
	}
	if err := a.users.MarkResetTokenUsed(ctx, t.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	hash, err := HashPassword(password, a.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := a.users.UpdateUserPassword(ctx, t.UserID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
