// Package identity resolves the acting identity (user id, client IP) for a
// request. User ids arrive as HMAC-signed headers minted by the external
// auth service; the IP comes from X-Forwarded-For or the socket address.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/campuslink/moderation/internal/logger"
)

// Identity is the acting identity of a request. Either field may be empty;
// both empty means the request is un-identifiable.
type Identity struct {
	UserID    string
	IPAddress string
}

// UserIDPtr returns the user id as a nullable pointer for storage queries.
func (id Identity) UserIDPtr() *string {
	if id.UserID == "" {
		return nil
	}
	return &id.UserID
}

// IPPtr returns the ip address as a nullable pointer for storage queries.
func (id Identity) IPPtr() *string {
	if id.IPAddress == "" {
		return nil
	}
	return &id.IPAddress
}

type ctxIdentityKey struct{}

// Resolver extracts identities from requests. With an empty secret the
// signature check is skipped and the bare X-User-ID header is trusted
// (development mode).
type Resolver struct {
	secret string
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: secret}
}

// Middleware resolves the request identity and stores it in the context.
// It never rejects: an invalid or missing signature just yields an identity
// without a user id, which downstream policy treats as anonymous.
func (rs *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID:    rs.resolveUserID(r),
			IPAddress: ClientIP(r),
		}
		ctx := context.WithValue(r.Context(), ctxIdentityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (rs *Resolver) resolveUserID(r *http.Request) string {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		return ""
	}
	if rs.secret == "" {
		return userID
	}
	sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))
	if sig == "" {
		logger.L().Warn("missing identity signature", "path", r.URL.Path, "remote", r.RemoteAddr)
		return ""
	}
	mac := hmac.New(sha256.New, []byte(rs.secret))
	mac.Write([]byte(userID))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		logger.L().Warn("invalid identity signature", "user", userID, "remote", r.RemoteAddr)
		return ""
	}
	return userID
}

// FromContext returns the identity resolved by Middleware, or the zero
// Identity when the middleware did not run.
func FromContext(ctx context.Context) Identity {
	if v := ctx.Value(ctxIdentityKey{}); v != nil {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}

// WithIdentity injects an identity directly; library callers and tests use
// it instead of the HTTP middleware.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}

// ClientIP returns the client address: the first comma-separated segment of
// X-Forwarded-For when present, otherwise the bare host of RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
