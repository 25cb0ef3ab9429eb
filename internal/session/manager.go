package session

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"looksdehoje-backend/config"
)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expiry REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`

// NewManager creates the session manager backing the gate. db is only used by the sqlite store.
func NewManager(cfg config.SessionConfig, db *sql.DB) (*scs.SessionManager, error) {
	sm := scs.New()

	switch cfg.Store {
	case "", "memory":
		sm.Store = memstore.New()
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("session store %q needs a database handle", cfg.Store)
		}
		if _, err := db.Exec(sessionsSchema); err != nil {
			return nil, fmt.Errorf("create sessions table: %w", err)
		}
		sm.Store = sqlite3store.New(db)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}

	if cfg.LifetimeHours > 0 {
		sm.Lifetime = time.Duration(cfg.LifetimeHours) * time.Hour
	}
	if cfg.CookieName != "" {
		sm.Cookie.Name = cfg.CookieName
	}
	sm.Cookie.HttpOnly = true
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.Secure

	return sm, nil
}
