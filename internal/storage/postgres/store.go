package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements the Storage interface backed by PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New connects to Postgres and migrates the moderation-core schema.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Note{},
		&domain.Blog{},
		&domain.Comment{},
		&domain.PartyMember{},
		&domain.Punishment{},
		&domain.Notification{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// === User Methods ===

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	var users []*domain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*domain.User, len(users))
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// === Note / Blog Methods ===

func (s *Store) GetNoteByID(ctx context.Context, id string) (*domain.Note, error) {
	var note domain.Note
	if err := s.db.WithContext(ctx).First(&note, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &note, nil
}

func (s *Store) GetBlogByID(ctx context.Context, id string) (*domain.Blog, error) {
	var blog domain.Blog
	if err := s.db.WithContext(ctx).First(&blog, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &blog, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if len(comment.Message) > 2000 {
		return nil, errors.New("comment message is too long")
	}
	if strings.TrimSpace(comment.Message) == "" {
		return nil, errors.New("comment message cannot be empty")
	}
	if (comment.NoteID == nil) == (comment.BlogID == nil) {
		return nil, errors.New("comment must target exactly one of note or blog")
	}

	// Target and parent existence are checked in the same transaction as the
	// insert so a concurrent delete cannot slip between check and create.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if comment.NoteID != nil {
			var count int64
			if err := tx.Model(&domain.Note{}).Where("id = ?", *comment.NoteID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return storage.ErrNotFound
			}
		}
		if comment.BlogID != nil {
			var count int64
			if err := tx.Model(&domain.Blog{}).Where("id = ?", *comment.BlogID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return storage.ErrNotFound
			}
		}
		if comment.ParentID != nil {
			var count int64
			if err := tx.Model(&domain.Comment{}).Where("id = ?", *comment.ParentID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return storage.ErrNotFound
			}
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	var comment domain.Comment
	if err := s.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &comment, nil
}

func (s *Store) GetCommentsByNoteID(ctx context.Context, noteID string) ([]*domain.Comment, error) {
	var comments []*domain.Comment
	err := s.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

func (s *Store) GetCommentsByBlogID(ctx context.Context, blogID string) ([]*domain.Comment, error) {
	var comments []*domain.Comment
	err := s.db.WithContext(ctx).
		Where("blog_id = ?", blogID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

// === Party Methods ===

func (s *Store) GetPartyMembers(ctx context.Context, noteID string) ([]*domain.PartyMember, error) {
	var members []*domain.PartyMember
	err := s.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}

func (s *Store) AddPartyMember(ctx context.Context, member *domain.PartyMember) (*domain.PartyMember, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Note{}).Where("id = ?", member.NoteID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrNotFound
		}

		var existing domain.PartyMember
		err := tx.Where("note_id = ? AND user_id = ?", member.NoteID, member.UserID).First(&existing).Error
		if err == nil {
			*member = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// === Punishment Methods ===

func (s *Store) FindActivePunishments(ctx context.Context, userID, ip *string) ([]*domain.Punishment, error) {
	query := s.db.WithContext(ctx).Model(&domain.Punishment{}).
		Where("revoked_at IS NULL").
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC())

	// Only the clauses for present identity axes are included.
	switch {
	case userID != nil && ip != nil:
		query = query.Where("user_id = ? OR ip_address = ?", *userID, *ip)
	case userID != nil:
		query = query.Where("user_id = ?", *userID)
	case ip != nil:
		query = query.Where("ip_address = ?", *ip)
	default:
		return nil, nil
	}

	var records []*domain.Punishment
	err := query.Find(&records).Error
	return records, err
}

func (s *Store) CreatePunishment(ctx context.Context, p *domain.Punishment) (*domain.Punishment, error) {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) RevokePunishment(ctx context.Context, id, adminID string) (*domain.Punishment, error) {
	var p domain.Punishment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		now := time.Now().UTC()
		p.RevokedAt = &now
		p.ExpiresAt = &now
		p.RevokedBy = &adminID
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// === Notification Methods ===

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Store) CreateNotifications(ctx context.Context, ns []*domain.Notification) ([]*domain.Notification, error) {
	if len(ns) == 0 {
		return ns, nil
	}
	if err := s.db.WithContext(ctx).Create(&ns).Error; err != nil {
		return nil, err
	}
	return ns, nil
}

func (s *Store) GetNotificationsByRecipient(ctx context.Context, recipientID string, args storage.PaginationArgs) ([]*domain.Notification, error) {
	query := s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC")
	if args.Limit > 0 {
		query = query.Limit(args.Limit)
	}
	if args.Cursor != nil {
		var cursor domain.Notification
		if err := s.db.First(&cursor, "id = ?", *args.Cursor).Error; err == nil {
			// Bulk fan-out inserts share a created_at, so the cursor
			// tie-breaks on id to keep page boundaries exact.
			query = query.Where(
				"created_at < ? OR (created_at = ? AND id < ?)",
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
			)
		}
	}
	var ns []*domain.Notification
	err := query.Find(&ns).Error
	return ns, err
}

func (s *Store) GetNotificationByID(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&n, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		n.IsRead = true
		return tx.Save(&n).Error
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}
