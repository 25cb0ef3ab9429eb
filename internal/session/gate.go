// Package session guards the admin area with a single authenticated flag kept in the
// visitor's session.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FlagKey is the session key holding the authenticated flag.
const FlagKey = "admin_authenticated"

// MinPasswordLen is the shortest admin password ChangePassword accepts.
const MinPasswordLen = 6

var (
	ErrMissingFields   = errors.New("all password fields are required")
	ErrWrongPassword   = errors.New("current password is incorrect")
	ErrPasswordMatch   = errors.New("new password and confirmation differ")
	ErrPasswordTooWeak = fmt.Errorf("new password must have at least %d characters", MinPasswordLen)
)

// State is what the gate knows about the current request.
type State int

const (
	// StateLoading means the session has not been loaded for this request yet.
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "loading"
	}
}

// FlagStore is the subset of *scs.SessionManager the gate needs.
type FlagStore interface {
	LoadAndSave(next http.Handler) http.Handler
	GetBool(ctx context.Context, key string) bool
	Put(ctx context.Context, key string, val interface{})
	Remove(ctx context.Context, key string)
	RenewToken(ctx context.Context) error
}

// PasswordSource reads and replaces the stored admin password.
type PasswordSource interface {
	AdminPassword(ctx context.Context) (string, error)
	SetAdminPassword(ctx context.Context, stored string) error
}

// Gate is created once at startup and handed to whatever needs to check or change the admin state.
type Gate struct {
	flags  FlagStore
	source PasswordSource
	logger *zap.Logger
}

func NewGate(flags FlagStore, source PasswordSource, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{flags: flags, source: source, logger: logger}
}

type loadedKey struct{}

// LoadAndSave loads the session around next and marks the request as loaded.
func (g *Gate) LoadAndSave(next http.Handler) http.Handler {
	return g.flags.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), loadedKey{}, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}

func loaded(ctx context.Context) bool {
	ok, _ := ctx.Value(loadedKey{}).(bool)
	return ok
}

// State reports the admin state of the request carried by ctx.
func (g *Gate) State(ctx context.Context) State {
	if !loaded(ctx) {
		return StateLoading
	}
	if g.flags.GetBool(ctx, FlagKey) {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// IsAuthenticated is false while the session is still loading.
func (g *Gate) IsAuthenticated(ctx context.Context) bool {
	return g.State(ctx) == StateAuthenticated
}

// Login compares password with the stored one. A wrong password returns (false, nil); an
// error means the stored password could not be read or checked.
func (g *Gate) Login(ctx context.Context, password string) (bool, error) {
	stored, err := g.source.AdminPassword(ctx)
	if err != nil {
		return false, fmt.Errorf("load admin password: %w", err)
	}
	ok, err := CheckPassword(password, stored)
	if err != nil {
		return false, fmt.Errorf("check admin password: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := g.flags.RenewToken(ctx); err != nil {
		return false, fmt.Errorf("renew session token: %w", err)
	}
	g.flags.Put(ctx, FlagKey, true)

	if NeedsRehash(stored) {
		g.upgrade(ctx, password)
	}
	return true, nil
}

// upgrade replaces a legacy or outdated stored password with a fresh hash.
func (g *Gate) upgrade(ctx context.Context, password string) {
	hash, err := HashPassword(password)
	if err == nil {
		err = g.source.SetAdminPassword(ctx, hash)
	}
	if err != nil {
		g.logger.Warn("failed to upgrade stored admin password", zap.Error(err))
	}
}

// Logout clears the flag. It is a no-op for anonymous sessions.
func (g *Gate) Logout(ctx context.Context) error {
	g.flags.Remove(ctx, FlagKey)
	return g.flags.RenewToken(ctx)
}

// ChangePassword validates the form and stores a hash of the new password.
func (g *Gate) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if current == "" || next == "" || confirm == "" {
		return ErrMissingFields
	}

	stored, err := g.source.AdminPassword(ctx)
	if err != nil {
		return fmt.Errorf("load admin password: %w", err)
	}
	ok, err := CheckPassword(current, stored)
	if err != nil {
		return fmt.Errorf("check admin password: %w", err)
	}
	if !ok {
		return ErrWrongPassword
	}

	if next != confirm {
		return ErrPasswordMatch
	}
	if len(next) < MinPasswordLen {
		return ErrPasswordTooWeak
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return g.source.SetAdminPassword(ctx, hash)
}

// RequireAdmin rejects requests without an authenticated session.
func (g *Gate) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.IsAuthenticated(c.Request.Context()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}
