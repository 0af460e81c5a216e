// Package notify resolves notification recipients for content-creation
// events and fans the records out to storage and live subscribers.
package notify

import (
	"github.com/campuslink/moderation/internal/domain"
)

// EventTarget is the tagged variant naming what an event points at. Exactly
// one branch applies per event; TargetFromFields encodes the precedence rule
// for callers that still pass loose ids.
type EventTarget interface {
	isTarget()
}

// Reply targets the owner of an existing comment.
type Reply struct {
	ParentCommentID string
}

// DirectNote targets the owner of a note.
type DirectNote struct {
	NoteID string
}

// DirectBlog targets the owner of a blog.
type DirectBlog struct {
	BlogID string
}

// Party fans out to a note's owner and every party member.
type Party struct {
	NoteID string
	Kind   domain.NotificationType // party_join or party_chat
}

func (Reply) isTarget()      {}
func (DirectNote) isTarget() {}
func (DirectBlog) isTarget() {}
func (Party) isTarget()      {}

// Event is a content-creation event to notify about. CommentID is the newly
// created comment for comment/reply events and nil for party events.
type Event struct {
	SenderID  string
	CommentID *string
	Target    EventTarget
}

// TargetFromFields picks the event target from loose identifiers. A parent
// comment wins over a directly supplied note or blog id; supplying none of
// the three is a validation error.
func TargetFromFields(parentCommentID, noteID, blogID *string) (EventTarget, error) {
	switch {
	case parentCommentID != nil && *parentCommentID != "":
		return Reply{ParentCommentID: *parentCommentID}, nil
	case noteID != nil && *noteID != "":
		return DirectNote{NoteID: *noteID}, nil
	case blogID != nil && *blogID != "":
		return DirectBlog{BlogID: *blogID}, nil
	default:
		return nil, ErrMissingTarget
	}
}
