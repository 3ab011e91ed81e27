package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/txn2/slidetrack/pkg/database"
)

const (
	// DefaultCookieName is used when MiddlewareConfig.CookieName is empty.
	DefaultCookieName = "slidetrack.sid"

	// slogKeyError is the slog attribute key for error values.
	slogKeyError = "error"
)

// contextKey is a private type for context keys.
type contextKey int

const sessionIDContextKey contextKey = iota

// WithID returns a context carrying the session ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, id)
}

// IDFromContext returns the session ID placed by Middleware.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok && id != ""
}

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	Store      Store
	Signer     *CookieSigner
	TTL        time.Duration
	CookieName string

	// Secure sets the cookie's Secure attribute. Enabled in production.
	Secure bool

	// StoreTimeout bounds each store call. Zero means
	// database.DefaultStoreTimeout.
	StoreTimeout time.Duration
}

// Middleware resolves the visitor's session from the signed cookie, creating
// one when the cookie is absent, tampered with, or points at an expired
// session. The session ID is available downstream via IDFromContext.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok, err := resolve(r, cfg)
			if err != nil {
				slog.Error("session: store error on lookup", slogKeyError, err)
				writeError(w, http.StatusInternalServerError, "store unavailable")
				return
			}
			if !ok {
				id, err = create(r.Context(), cfg)
				if err != nil {
					slog.Error("session: failed to create", slogKeyError, err)
					writeError(w, http.StatusInternalServerError, "store unavailable")
					return
				}
				slog.Debug("session: created", "session_id", id)
			}

			if err := setCookie(w, id, cfg); err != nil {
				slog.Error("session: failed to sign cookie", slogKeyError, err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
		})
	}
}

// resolve returns the session ID from a valid cookie that names a live
// session. A missing or invalid cookie is not an error.
func resolve(r *http.Request, cfg MiddlewareConfig) (string, bool, error) {
	c, err := r.Cookie(cfg.CookieName)
	if err != nil {
		return "", false, nil
	}
	id, err := cfg.Signer.Verify(c.Value)
	if err != nil {
		slog.Debug("session: rejected cookie", slogKeyError, err)
		return "", false, nil
	}

	ctx, cancel := database.WithTimeout(r.Context(), cfg.StoreTimeout)
	defer cancel()

	sess, err := cfg.Store.Get(ctx, id)
	if err != nil {
		return "", false, database.Classify("get session", err)
	}
	if sess == nil {
		return "", false, nil
	}

	if err := cfg.Store.Touch(ctx, id); err != nil {
		slog.Warn("session: touch failed", "session_id", id, slogKeyError, err)
	}
	return id, true, nil
}

func create(ctx context.Context, cfg MiddlewareConfig) (string, error) {
	id, err := generateSessionID()
	if err != nil {
		return "", err
	}

	ctx, cancel := database.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()

	if err := cfg.Store.Create(ctx, New(id, time.Now(), cfg.TTL)); err != nil {
		return "", database.Classify("create session", err)
	}
	return id, nil
}

func setCookie(w http.ResponseWriter, id string, cfg MiddlewareConfig) error {
	value, err := cfg.Signer.Sign(id, time.Now())
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// writeError writes the same {"error": "..."} body the API handlers use.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
