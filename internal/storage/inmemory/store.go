package inmemory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/storage"
	"github.com/google/uuid"
)

// Store implements the Storage interface in memory. It backs tests and the
// default development mode of cmd/server.
type Store struct {
	mu             sync.RWMutex
	users          map[string]*domain.User
	notes          map[string]*domain.Note
	blogs          map[string]*domain.Blog
	comments       map[string]*domain.Comment
	commentsByNote map[string][]string
	commentsByBlog map[string][]string
	partyByNote    map[string][]*domain.PartyMember
	punishments    map[string]*domain.Punishment
	notifications  map[string]*domain.Notification
	notifyByUser   map[string][]string

	// Now is the store's clock; tests override it for deterministic
	// punishment-window checks.
	Now func() time.Time

	// FailReads forces every read to error; used to exercise the gate's
	// fail-open path.
	FailReads bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		users:          make(map[string]*domain.User),
		notes:          make(map[string]*domain.Note),
		blogs:          make(map[string]*domain.Blog),
		comments:       make(map[string]*domain.Comment),
		commentsByNote: make(map[string][]string),
		commentsByBlog: make(map[string][]string),
		partyByNote:    make(map[string][]*domain.PartyMember),
		punishments:    make(map[string]*domain.Punishment),
		notifications:  make(map[string]*domain.Notification),
		notifyByUser:   make(map[string][]string),
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

var errForcedFailure = errors.New("simulated storage failure")

// === Seed helpers (concrete type only; account/post CRUD is external) ===

func (s *Store) SeedUser(u *domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.Now()
	}
	s.users[u.ID] = u
	return u
}

func (s *Store) SeedNote(n *domain.Note) *domain.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.Now()
	}
	s.notes[n.ID] = n
	return n
}

func (s *Store) SeedBlog(b *domain.Blog) *domain.Blog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.Now()
	}
	s.blogs[b.ID] = b
	return b
}

// === User Methods ===

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	result := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}

// === Note / Blog Methods ===

func (s *Store) GetNoteByID(ctx context.Context, id string) (*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	n, ok := s.notes[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return n, nil
}

func (s *Store) GetBlogByID(ctx context.Context, id string) (*domain.Blog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	b, ok := s.blogs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(comment.Message) > 2000 {
		return nil, errors.New("comment message is too long")
	}
	if strings.TrimSpace(comment.Message) == "" {
		return nil, errors.New("comment message cannot be empty")
	}
	if (comment.NoteID == nil) == (comment.BlogID == nil) {
		return nil, errors.New("comment must target exactly one of note or blog")
	}
	if comment.NoteID != nil {
		if _, ok := s.notes[*comment.NoteID]; !ok {
			return nil, storage.ErrNotFound
		}
	}
	if comment.BlogID != nil {
		if _, ok := s.blogs[*comment.BlogID]; !ok {
			return nil, storage.ErrNotFound
		}
	}
	if comment.ParentID != nil {
		if _, ok := s.comments[*comment.ParentID]; !ok {
			return nil, storage.ErrNotFound
		}
	}

	comment.ID = uuid.NewString()
	comment.CreatedAt = s.Now()
	comment.UpdatedAt = comment.CreatedAt
	s.comments[comment.ID] = comment

	if comment.NoteID != nil {
		s.commentsByNote[*comment.NoteID] = append(s.commentsByNote[*comment.NoteID], comment.ID)
	} else {
		s.commentsByBlog[*comment.BlogID] = append(s.commentsByBlog[*comment.BlogID], comment.ID)
	}
	return comment, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	c, ok := s.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetCommentsByNoteID(ctx context.Context, noteID string) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	return s.collectComments(s.commentsByNote[noteID]), nil
}

func (s *Store) GetCommentsByBlogID(ctx context.Context, blogID string) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	return s.collectComments(s.commentsByBlog[blogID]), nil
}

// collectComments returns copies sorted by creation time so callers can
// enrich them without mutating stored rows.
func (s *Store) collectComments(ids []string) []*domain.Comment {
	result := make([]*domain.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// === Party Methods ===

func (s *Store) GetPartyMembers(ctx context.Context, noteID string) ([]*domain.PartyMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	members := s.partyByNote[noteID]
	result := make([]*domain.PartyMember, len(members))
	copy(result, members)
	return result, nil
}

func (s *Store) AddPartyMember(ctx context.Context, member *domain.PartyMember) (*domain.PartyMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[member.NoteID]; !ok {
		return nil, storage.ErrNotFound
	}
	for _, m := range s.partyByNote[member.NoteID] {
		if m.UserID == member.UserID {
			return m, nil
		}
	}
	member.ID = uuid.NewString()
	member.JoinedAt = s.Now()
	s.partyByNote[member.NoteID] = append(s.partyByNote[member.NoteID], member)
	return member, nil
}

// === Punishment Methods ===

func (s *Store) FindActivePunishments(ctx context.Context, userID, ip *string) ([]*domain.Punishment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	now := s.Now()
	var result []*domain.Punishment
	for _, p := range s.punishments {
		if !p.ActiveAt(now) {
			continue
		}
		if userID != nil && p.UserID != nil && *p.UserID == *userID {
			result = append(result, p)
			continue
		}
		if ip != nil && p.IPAddress != nil && *p.IPAddress == *ip {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) CreatePunishment(ctx context.Context, p *domain.Punishment) (*domain.Punishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = s.Now()
	s.punishments[p.ID] = p
	return p, nil
}

func (s *Store) RevokePunishment(ctx context.Context, id, adminID string) (*domain.Punishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.punishments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	now := s.Now()
	p.RevokedAt = &now
	p.ExpiresAt = &now
	p.RevokedBy = &adminID
	return p, nil
}

// === Notification Methods ===

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertNotification(n)
	return n, nil
}

func (s *Store) CreateNotifications(ctx context.Context, ns []*domain.Notification) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range ns {
		s.insertNotification(n)
	}
	return ns, nil
}

func (s *Store) insertNotification(n *domain.Notification) {
	n.ID = uuid.NewString()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.Now()
	}
	s.notifications[n.ID] = n
	s.notifyByUser[n.RecipientID] = append(s.notifyByUser[n.RecipientID], n.ID)
}

func (s *Store) GetNotificationsByRecipient(ctx context.Context, recipientID string, args storage.PaginationArgs) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	ids := s.notifyByUser[recipientID]
	all := make([]*domain.Notification, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.notifications[id]; ok {
			all = append(all, n)
		}
	}
	// Most recent first, id as tie-break: bulk fan-out inserts share a
	// created_at and page boundaries must stay exact across them.
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	startIndex := 0
	if args.Cursor != nil {
		for i, n := range all {
			if n.ID == *args.Cursor {
				startIndex = i + 1
				break
			}
		}
	}
	if startIndex >= len(all) {
		return []*domain.Notification{}, nil
	}
	endIndex := len(all)
	if args.Limit > 0 && startIndex+args.Limit < endIndex {
		endIndex = startIndex + args.Limit
	}
	return all[startIndex:endIndex], nil
}

func (s *Store) GetNotificationByID(ctx context.Context, id string) (*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, errForcedFailure
	}
	n, ok := s.notifications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	n.IsRead = true
	return n, nil
}
