package users

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	"qms/callboard-service/internal/models"
	"qms/callboard-service/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Options struct {
	Now func() time.Time
}

// Directory manages staff accounts stored as the users document.
type Directory struct {
	docs     store.DocumentStore
	verifier CredentialVerifier
	mu       sync.Mutex
	now      func() time.Time
	logger   zerolog.Logger
}

func NewDirectory(docs store.DocumentStore, verifier CredentialVerifier, options Options, logger zerolog.Logger) *Directory {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Directory{
		docs:     docs,
		verifier: verifier,
		now:      now,
		logger:   logger.With().Str("component", "users").Logger(),
	}
}

func (d *Directory) List(ctx context.Context) ([]models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked(ctx), nil
}

func (d *Directory) Create(ctx context.Context, username, password, role string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.User{}, ErrInvalidUser
	}
	role, err := normalizeRole(role)
	if err != nil {
		return models.User{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	all := d.loadLocked(ctx)
	if indexOf(all, username) >= 0 {
		return models.User{}, ErrUserExists
	}
	hash, err := d.verifier.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    d.now().UTC(),
	}
	all = append(all, user)
	if err := d.saveLocked(ctx, all); err != nil {
		return models.User{}, err
	}
	d.logger.Info().Str("username", username).Str("role", role).Msg("user created")
	return user, nil
}

func (d *Directory) UpdatePassword(ctx context.Context, username, newPassword string) error {
	username = strings.TrimSpace(username)
	if username == "" || newPassword == "" {
		return ErrInvalidUser
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	all := d.loadLocked(ctx)
	idx := indexOf(all, username)
	if idx < 0 {
		return ErrUserNotFound
	}
	hash, err := d.verifier.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	all[idx].PasswordHash = hash
	all[idx].Password = ""
	if err := d.saveLocked(ctx, all); err != nil {
		return err
	}
	d.logger.Info().Str("username", username).Msg("password updated")
	return nil
}

func (d *Directory) Delete(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)

	d.mu.Lock()
	defer d.mu.Unlock()

	all := d.loadLocked(ctx)
	idx := indexOf(all, username)
	if idx < 0 {
		return ErrUserNotFound
	}
	all = append(all[:idx], all[idx+1:]...)
	if err := d.saveLocked(ctx, all); err != nil {
		return err
	}
	d.logger.Info().Str("username", username).Msg("user deleted")
	return nil
}

// FindByCredentials reports whether username/password identify an account.
// Records still holding a plaintext password are rehashed on a match.
func (d *Directory) FindByCredentials(ctx context.Context, username, password string) (models.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.User{}, false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	all := d.loadLocked(ctx)
	idx := indexOf(all, username)
	if idx < 0 {
		return models.User{}, false, nil
	}
	user := all[idx]

	if user.PasswordHash != "" {
		if !d.verifier.Verify(user.PasswordHash, password) {
			return models.User{}, false, nil
		}
		return sanitize(user), true, nil
	}

	if user.Password == "" || subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return models.User{}, false, nil
	}
	hash, err := d.verifier.Hash(password)
	if err != nil {
		return models.User{}, false, fmt.Errorf("hash password: %w", err)
	}
	all[idx].PasswordHash = hash
	all[idx].Password = ""
	if all[idx].ID == "" {
		all[idx].ID = uuid.NewString()
	}
	if err := d.saveLocked(ctx, all); err != nil {
		d.logger.Warn().Err(err).Str("username", username).Msg("failed to upgrade legacy password")
	} else {
		d.logger.Info().Str("username", username).Msg("legacy password upgraded to hash")
	}
	return sanitize(all[idx]), true, nil
}

func (d *Directory) loadLocked(ctx context.Context) []models.User {
	all := store.LoadOrDefault(ctx, d.docs, store.UsersDocument, func() []models.User { return nil }, d.logger)
	if all == nil {
		all = []models.User{}
	}
	for i := range all {
		if all[i].Role == "" {
			all[i].Role = models.RoleStaff
		}
	}
	return all
}

func (d *Directory) saveLocked(ctx context.Context, all []models.User) error {
	if err := d.docs.Save(ctx, store.UsersDocument, all); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

func normalizeRole(role string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", models.RoleStaff:
		return models.RoleStaff, nil
	case models.RoleAdmin:
		return models.RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

func indexOf(all []models.User, username string) int {
	for i, user := range all {
		if user.Username == username {
			return i
		}
	}
	return -1
}

func sanitize(user models.User) models.User {
	user.PasswordHash = ""
	user.Password = ""
	return user
}
