// Package pipeline orchestrates the write paths: every comment, reply and
// party action passes through the punishment gate, validation and (for
// comments) the rate limiter before persistence, with notification fan-out
// firing best-effort after a successful write.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/identity"
	"github.com/campuslink/moderation/internal/logger"
	"github.com/campuslink/moderation/internal/notify"
	"github.com/campuslink/moderation/internal/punish"
	"github.com/campuslink/moderation/internal/ratelimit"
	"github.com/campuslink/moderation/internal/storage"
)

// PolicyError is a gate or limiter denial. Code is stable so the frontend
// can branch without string-matching; gate denials carry only the
// human-readable reason.
type PolicyError struct {
	Code    string
	Message string
}

func (e *PolicyError) Error() string { return e.Message }

// RateLimited reports whether the error is the limiter's denial.
func (e *PolicyError) RateLimited() bool { return e.Code == CodeCommentRateLimit }

const CodeCommentRateLimit = "COMMENT_RATE_LIMIT"

var (
	errEmptyMessage = &notify.ResolveError{Code: "EMPTY_MESSAGE", Message: "message cannot be empty"}
	errMissingUser  = &notify.ResolveError{Code: "MISSING_USER", Message: "a signed-in user is required"}
)

// Pipeline wires the moderation core together over one storage collaborator.
type Pipeline struct {
	store   storage.Storage
	gate    *punish.Gate
	limiter ratelimit.Store
	engine  *notify.Engine
}

func New(store storage.Storage, gate *punish.Gate, limiter ratelimit.Store, engine *notify.Engine) *Pipeline {
	return &Pipeline{store: store, gate: gate, limiter: limiter, engine: engine}
}

// CreateCommentInput is a comment or reply write. FallbackUserID is the
// request-body user field honored only when no authenticated identity is
// present.
type CreateCommentInput struct {
	Message        string
	NoteID         *string
	BlogID         *string
	ParentID       *string
	FallbackUserID string
}

// CreateComment runs the full write pipeline and returns the persisted
// comment. Notification fan-out failures are logged, never surfaced: a user
// must not lose their comment because delivery failed.
func (p *Pipeline) CreateComment(ctx context.Context, in CreateCommentInput) (*domain.Comment, error) {
	id := p.actingIdentity(ctx, in.FallbackUserID)

	if d := p.gate.Evaluate(ctx, id); !d.Allow {
		return nil, &PolicyError{Message: d.Reason}
	}

	// A persisted comment row carries its author; there is no anonymous
	// write path, only the body-field fallback for unauthenticated
	// clients.
	if id.UserID == "" {
		return nil, errMissingUser
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, errEmptyMessage
	}

	comment := &domain.Comment{
		UserID:   id.UserID,
		Message:  in.Message,
		NoteID:   in.NoteID,
		BlogID:   in.BlogID,
		ParentID: in.ParentID,
	}

	// A reply inherits its thread from the parent comment, regardless of
	// any note/blog id the caller also supplied.
	if in.ParentID != nil && *in.ParentID != "" {
		parent, err := p.store.GetCommentByID(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, notify.ErrParentNotFound
			}
			return nil, err
		}
		comment.NoteID = parent.NoteID
		comment.BlogID = parent.BlogID
	}

	var scope ratelimit.Scope
	switch {
	case comment.NoteID != nil:
		scope = ratelimit.NoteScope(*comment.NoteID)
	case comment.BlogID != nil:
		scope = ratelimit.BlogScope(*comment.BlogID)
	default:
		return nil, notify.ErrMissingTarget
	}
	if !p.limiter.Allow(id.UserID, scope) {
		return nil, &PolicyError{Code: CodeCommentRateLimit, Message: "you are commenting too fast, slow down"}
	}

	persisted, err := p.store.CreateComment(ctx, comment)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, p.targetNotFound(comment)
		}
		return nil, err
	}

	p.notifyBestEffort(ctx, notify.Event{
		SenderID:  id.UserID,
		CommentID: &persisted.ID,
		Target:    p.commentTarget(persisted),
	})
	return persisted, nil
}

// JoinParty persists party membership and fans out party_join
// notifications.
func (p *Pipeline) JoinParty(ctx context.Context, noteID, fallbackUserID string) (*domain.PartyMember, error) {
	id := p.actingIdentity(ctx, fallbackUserID)

	if d := p.gate.Evaluate(ctx, id); !d.Allow {
		return nil, &PolicyError{Message: d.Reason}
	}
	if id.UserID == "" {
		return nil, errMissingUser
	}

	member, err := p.store.AddPartyMember(ctx, &domain.PartyMember{NoteID: noteID, UserID: id.UserID})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notify.ErrNoteNotFound
		}
		return nil, err
	}

	p.notifyBestEffort(ctx, notify.Event{
		SenderID: id.UserID,
		Target:   notify.Party{NoteID: noteID, Kind: domain.NotifyPartyJoin},
	})
	return member, nil
}

// PartyChat handles a transient chat message: nothing is stored except the
// party_chat notifications, so resolution errors surface to the caller.
func (p *Pipeline) PartyChat(ctx context.Context, noteID, message, fallbackUserID string) (notify.Result, error) {
	id := p.actingIdentity(ctx, fallbackUserID)

	if d := p.gate.Evaluate(ctx, id); !d.Allow {
		return notify.Result{}, &PolicyError{Message: d.Reason}
	}
	if id.UserID == "" {
		return notify.Result{}, errMissingUser
	}
	if strings.TrimSpace(message) == "" {
		return notify.Result{}, errEmptyMessage
	}

	return p.engine.Notify(ctx, notify.Event{
		SenderID: id.UserID,
		Target:   notify.Party{NoteID: noteID, Kind: domain.NotifyPartyChat},
	})
}

func (p *Pipeline) actingIdentity(ctx context.Context, fallbackUserID string) identity.Identity {
	id := identity.FromContext(ctx)
	if id.UserID == "" && fallbackUserID != "" {
		id.UserID = fallbackUserID
	}
	return id
}

func (p *Pipeline) commentTarget(c *domain.Comment) notify.EventTarget {
	if c.ParentID != nil && *c.ParentID != "" {
		return notify.Reply{ParentCommentID: *c.ParentID}
	}
	if c.NoteID != nil {
		return notify.DirectNote{NoteID: *c.NoteID}
	}
	return notify.DirectBlog{BlogID: *c.BlogID}
}

func (p *Pipeline) targetNotFound(c *domain.Comment) error {
	if c.NoteID != nil {
		return notify.ErrNoteNotFound
	}
	return notify.ErrBlogNotFound
}

func (p *Pipeline) notifyBestEffort(ctx context.Context, ev notify.Event) {
	if _, err := p.engine.Notify(ctx, ev); err != nil {
		logger.L().Error("notification fan-out failed", "err", err, "sender", ev.SenderID)
	}
}
