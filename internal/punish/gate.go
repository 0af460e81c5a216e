// Package punish enforces moderator punishments on write paths and carries
// the admin lifecycle operations (punish, unban).
package punish

import (
	"context"
	"time"

	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/identity"
	"github.com/campuslink/moderation/internal/logger"
	"github.com/campuslink/moderation/internal/storage"
)

// User-facing denial reasons. Severity picks the message: any active ban
// outranks a timeout.
const (
	ReasonBanned     = "Your account or network has been banned from posting."
	ReasonRestricted = "You are temporarily restricted from posting. Try again later."
)

// Decision is the gate's verdict for a write action.
type Decision struct {
	Allow  bool
	Reason string
}

// Gate evaluates active punishments for an identity. The zero FailClosed
// value keeps the documented fail-open posture: a storage error during
// evaluation allows the action rather than turning moderation into an
// availability hazard.
type Gate struct {
	store      storage.Storage
	failClosed bool
	now        func() time.Time
}

type Option func(*Gate)

// WithFailClosed makes storage errors deny instead of allow.
func WithFailClosed() Option {
	return func(g *Gate) { g.failClosed = true }
}

// WithClock overrides the gate's clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(store storage.Storage, opts ...Option) *Gate {
	g := &Gate{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate decides whether the identity may perform a write action. An
// identity with neither a user id nor an ip address is allowed outright:
// nothing can be matched against punishment records.
func (g *Gate) Evaluate(ctx context.Context, id identity.Identity) Decision {
	if id.UserID == "" && id.IPAddress == "" {
		return Decision{Allow: true}
	}

	records, err := g.store.FindActivePunishments(ctx, id.UserIDPtr(), id.IPPtr())
	if err != nil {
		if g.failClosed {
			logger.L().Error("punishment lookup failed, denying (fail-closed)", "err", err, "user", id.UserID, "ip", id.IPAddress)
			return Decision{Allow: false, Reason: ReasonRestricted}
		}
		logger.L().Error("punishment lookup failed, allowing (fail-open)", "err", err, "user", id.UserID, "ip", id.IPAddress)
		return Decision{Allow: true}
	}

	// The store already scopes to active records, but re-check the window
	// against our own clock so stale reads cannot extend a punishment.
	now := g.now()
	banned := false
	blocked := false
	for _, p := range records {
		if !p.Type.Enforceable() || !p.ActiveAt(now) {
			continue
		}
		blocked = true
		if p.Type == domain.PunishBanUser || p.Type == domain.PunishBanIP {
			banned = true
		}
	}

	if !blocked {
		return Decision{Allow: true}
	}
	if banned {
		return Decision{Allow: false, Reason: ReasonBanned}
	}
	return Decision{Allow: false, Reason: ReasonRestricted}
}
