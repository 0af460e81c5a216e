package storage

import (
	"context"
	"errors"

	"github.com/campuslink/moderation/internal/domain"
)

// ErrNotFound is returned by lookups whose target record does not exist.
// Both implementations return it (possibly wrapped) so callers can map it
// to a specific not-found error code.
var ErrNotFound = errors.New("record not found")

// PaginationArgs are cursor-based pagination arguments.
type PaginationArgs struct {
	Limit  int
	Cursor *string
}

// Storage is the contract shared by the in-memory and Postgres stores. The
// moderation core treats it as an external collaborator; everything else in
// the platform's CRUD surface stays behind it.
type Storage interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)

	GetNoteByID(ctx context.Context, id string) (*domain.Note, error)
	GetBlogByID(ctx context.Context, id string) (*domain.Blog, error)

	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*domain.Comment, error)
	GetCommentsByNoteID(ctx context.Context, noteID string) ([]*domain.Comment, error)
	GetCommentsByBlogID(ctx context.Context, blogID string) ([]*domain.Comment, error)

	GetPartyMembers(ctx context.Context, noteID string) ([]*domain.PartyMember, error)
	AddPartyMember(ctx context.Context, member *domain.PartyMember) (*domain.PartyMember, error)

	// FindActivePunishments matches on whichever of userID/ip is non-nil and
	// returns only records whose active window still holds.
	FindActivePunishments(ctx context.Context, userID, ip *string) ([]*domain.Punishment, error)
	CreatePunishment(ctx context.Context, p *domain.Punishment) (*domain.Punishment, error)
	RevokePunishment(ctx context.Context, id, adminID string) (*domain.Punishment, error)

	CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	CreateNotifications(ctx context.Context, ns []*domain.Notification) ([]*domain.Notification, error)
	GetNotificationsByRecipient(ctx context.Context, recipientID string, args PaginationArgs) ([]*domain.Notification, error)
	GetNotificationByID(ctx context.Context, id string) (*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (*domain.Notification, error)
}
