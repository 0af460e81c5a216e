package notify

import (
	"context"
	"errors"

	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/storage"
)

// Result reports what a Notify call did. NoneNeeded distinguishes "every
// candidate recipient was the sender" from an actual fan-out, which callers
// care about for idempotence.
type Result struct {
	Notifications []*domain.Notification
	NoneNeeded    bool
}

// Engine resolves recipients and persists notification records. A resolved
// recipient equal to the sender is always dropped before persistence.
type Engine struct {
	store    storage.Storage
	observer *Observer
}

// NewEngine creates an Engine. The observer may be nil when no live stream
// is wired.
func NewEngine(store storage.Storage, observer *Observer) *Engine {
	return &Engine{store: store, observer: observer}
}

// Notify resolves the recipient set for ev and persists one record per
// recipient. Single-recipient events use one insert; party events use a
// bulk insert.
func (e *Engine) Notify(ctx context.Context, ev Event) (Result, error) {
	switch target := ev.Target.(type) {
	case Reply:
		return e.notifyReply(ctx, ev, target)
	case DirectNote:
		return e.notifyDirectNote(ctx, ev, target)
	case DirectBlog:
		return e.notifyDirectBlog(ctx, ev, target)
	case Party:
		return e.notifyParty(ctx, ev, target)
	default:
		return Result{}, ErrMissingTarget
	}
}

func (e *Engine) notifyReply(ctx context.Context, ev Event, target Reply) (Result, error) {
	if ev.CommentID == nil || *ev.CommentID == "" {
		return Result{}, ErrMissingCommentID
	}

	parent, err := e.store.GetCommentByID(ctx, target.ParentCommentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, ErrParentNotFound
		}
		return Result{}, err
	}
	if parent.UserID == ev.SenderID {
		return Result{NoneNeeded: true}, nil
	}

	// The thread pointer comes from the parent comment, never from whatever
	// note/blog id the caller supplied alongside it.
	n := &domain.Notification{
		RecipientID: parent.UserID,
		SenderID:    ev.SenderID,
		NoteID:      parent.NoteID,
		BlogID:      parent.BlogID,
		CommentID:   ev.CommentID,
		ParentID:    &parent.ID,
		Type:        domain.NotifyReply,
	}
	return e.persistOne(ctx, n)
}

func (e *Engine) notifyDirectNote(ctx context.Context, ev Event, target DirectNote) (Result, error) {
	if ev.CommentID == nil || *ev.CommentID == "" {
		return Result{}, ErrMissingCommentID
	}

	note, err := e.store.GetNoteByID(ctx, target.NoteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, ErrNoteNotFound
		}
		return Result{}, err
	}
	if note.UserID == ev.SenderID {
		return Result{NoneNeeded: true}, nil
	}

	n := &domain.Notification{
		RecipientID: note.UserID,
		SenderID:    ev.SenderID,
		NoteID:      &note.ID,
		CommentID:   ev.CommentID,
		Type:        domain.NotifyComment,
	}
	return e.persistOne(ctx, n)
}

func (e *Engine) notifyDirectBlog(ctx context.Context, ev Event, target DirectBlog) (Result, error) {
	if ev.CommentID == nil || *ev.CommentID == "" {
		return Result{}, ErrMissingCommentID
	}

	blog, err := e.store.GetBlogByID(ctx, target.BlogID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, ErrBlogNotFound
		}
		return Result{}, err
	}
	if blog.UserID == ev.SenderID {
		return Result{NoneNeeded: true}, nil
	}

	n := &domain.Notification{
		RecipientID: blog.UserID,
		SenderID:    ev.SenderID,
		BlogID:      &blog.ID,
		CommentID:   ev.CommentID,
		Type:        domain.NotifyComment,
	}
	return e.persistOne(ctx, n)
}

func (e *Engine) notifyParty(ctx context.Context, ev Event, target Party) (Result, error) {
	note, err := e.store.GetNoteByID(ctx, target.NoteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, ErrNoteNotFound
		}
		return Result{}, err
	}
	members, err := e.store.GetPartyMembers(ctx, target.NoteID)
	if err != nil {
		return Result{}, err
	}

	// Candidates are the note owner plus every member, deduplicated, minus
	// the sender.
	seen := map[string]struct{}{ev.SenderID: {}}
	var ns []*domain.Notification
	addRecipient := func(userID string) {
		if _, ok := seen[userID]; ok {
			return
		}
		seen[userID] = struct{}{}
		ns = append(ns, &domain.Notification{
			RecipientID: userID,
			SenderID:    ev.SenderID,
			NoteID:      &note.ID,
			Type:        target.Kind,
		})
	}
	addRecipient(note.UserID)
	for _, m := range members {
		addRecipient(m.UserID)
	}

	if len(ns) == 0 {
		// Solo party: every candidate was the sender.
		return Result{NoneNeeded: true}, nil
	}

	persisted, err := e.store.CreateNotifications(ctx, ns)
	if err != nil {
		return Result{}, err
	}
	e.publish(persisted)
	return Result{Notifications: persisted}, nil
}

func (e *Engine) persistOne(ctx context.Context, n *domain.Notification) (Result, error) {
	persisted, err := e.store.CreateNotification(ctx, n)
	if err != nil {
		return Result{}, err
	}
	e.publish([]*domain.Notification{persisted})
	return Result{Notifications: []*domain.Notification{persisted}}, nil
}

func (e *Engine) publish(ns []*domain.Notification) {
	if e.observer == nil {
		return
	}
	for _, n := range ns {
		e.observer.Publish(n)
	}
}
