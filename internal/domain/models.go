package domain

import "time"

// User is the account entity. Password and profile handling live in the
// external CRUD layer; the moderation core only reads identity fields.
type User struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserName  string    `json:"userName" gorm:"type:varchar(255);not null"`
	LoginName string    `json:"loginName" gorm:"type:varchar(255);not null;uniqueIndex"`
	Img       string    `json:"img" gorm:"type:varchar(512)"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;default:now()"`
}

// Note is an ephemeral post. Parties are attached to notes.
type Note struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;index"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;default:now()"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Blog is a persistent post.
type Blog struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;index"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;default:now()"`
}

// Comment belongs to exactly one of a note or a blog thread. ParentID, if
// set, references a comment in the same thread. Children and the author
// fields are computed at read time and never stored.
type Comment struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;index"`
	Message   string    `json:"message" gorm:"type:varchar(2000);not null"`
	NoteID    *string   `json:"noteId,omitempty" gorm:"type:uuid;index"`
	BlogID    *string   `json:"blogId,omitempty" gorm:"type:uuid;index"`
	ParentID  *string   `json:"parentCommentId,omitempty" gorm:"type:uuid;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;default:now()"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserName  string     `json:"userName" gorm:"-"`
	LoginName string     `json:"loginName" gorm:"-"`
	Img       string     `json:"img" gorm:"-"`
	Children  []*Comment `json:"children" gorm:"-"`
}

// PartyMember records membership of a user in the transient party attached
// to a note.
type PartyMember struct {
	ID       string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	NoteID   string    `json:"noteId" gorm:"type:uuid;not null;index"`
	UserID   string    `json:"userId" gorm:"type:uuid;not null;index"`
	JoinedAt time.Time `json:"joinedAt" gorm:"not null;default:now()"`
}

// PunishmentType classifies a punishment record. Only TIMEOUT, BAN_USER and
// BAN_IP are enforceable; WARN never blocks an action.
type PunishmentType string

const (
	PunishTimeout PunishmentType = "TIMEOUT"
	PunishBanUser PunishmentType = "BAN_USER"
	PunishBanIP   PunishmentType = "BAN_IP"
	PunishWarn    PunishmentType = "WARN"
)

// Enforceable reports whether the type can deny a write action.
func (t PunishmentType) Enforceable() bool {
	return t == PunishTimeout || t == PunishBanUser || t == PunishBanIP
}

// Punishment is a moderator-created record. It is active while RevokedAt is
// nil and ExpiresAt is nil or in the future. Records are revoked, never
// hard-deleted.
type Punishment struct {
	ID        string         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    *string        `json:"userId,omitempty" gorm:"type:uuid;index"`
	IPAddress *string        `json:"ipAddress,omitempty" gorm:"type:varchar(64);index"`
	Type      PunishmentType `json:"type" gorm:"type:varchar(16);not null"`
	Reason    string         `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt time.Time      `json:"createdAt" gorm:"not null;default:now()"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	RevokedAt *time.Time     `json:"revokedAt,omitempty"`
	CreatedBy string         `json:"createdBy" gorm:"type:uuid;not null"`
	RevokedBy *string        `json:"revokedBy,omitempty" gorm:"type:uuid"`
}

// ActiveAt reports whether the record is in force at the given instant.
func (p *Punishment) ActiveAt(now time.Time) bool {
	if p.RevokedAt != nil {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}

// NotificationType classifies a notification record.
type NotificationType string

const (
	NotifyComment   NotificationType = "comment"
	NotifyReply     NotificationType = "reply"
	NotifyPartyJoin NotificationType = "party_join"
	NotifyPartyChat NotificationType = "party_chat"
)

// Notification is a per-recipient record of a content-creation event.
// RecipientID never equals SenderID for a stored record.
type Notification struct {
	ID          string           `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RecipientID string           `json:"recipientId" gorm:"type:uuid;not null;index"`
	SenderID    string           `json:"senderId" gorm:"type:uuid;not null;index"`
	NoteID      *string          `json:"noteId,omitempty" gorm:"type:uuid"`
	BlogID      *string          `json:"blogId,omitempty" gorm:"type:uuid"`
	CommentID   *string          `json:"commentId,omitempty" gorm:"type:uuid"`
	ParentID    *string          `json:"parentCommentId,omitempty" gorm:"type:uuid"`
	Type        NotificationType `json:"type" gorm:"type:varchar(16);not null"`
	IsRead      bool             `json:"isRead" gorm:"not null;default:false;index"`
	CreatedAt   time.Time        `json:"createdAt" gorm:"not null;default:now()"`
}
