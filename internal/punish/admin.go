package punish

import (
	"context"
	"errors"
	"time"

	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/storage"
)

var (
	ErrMissingTarget = errors.New("punishment requires a user id or an ip address")
	ErrInvalidType   = errors.New("unknown punishment type")
)

// Admin performs the moderator-side punishment lifecycle. Records are
// created and revoked, never hard-deleted.
type Admin struct {
	store storage.Storage
}

func NewAdmin(store storage.Storage) *Admin {
	return &Admin{store: store}
}

// PunishInput describes a new punishment. ExpiresAt nil means indefinite.
type PunishInput struct {
	UserID    *string
	IPAddress *string
	Type      domain.PunishmentType
	Reason    string
	ExpiresAt *time.Time
	CreatedBy string
}

func (a *Admin) Punish(ctx context.Context, in PunishInput) (*domain.Punishment, error) {
	if in.UserID == nil && in.IPAddress == nil {
		return nil, ErrMissingTarget
	}
	switch in.Type {
	case domain.PunishTimeout, domain.PunishBanUser, domain.PunishBanIP, domain.PunishWarn:
	default:
		return nil, ErrInvalidType
	}
	return a.store.CreatePunishment(ctx, &domain.Punishment{
		UserID:    in.UserID,
		IPAddress: in.IPAddress,
		Type:      in.Type,
		Reason:    in.Reason,
		ExpiresAt: in.ExpiresAt,
		CreatedBy: in.CreatedBy,
	})
}

// Unban revokes a punishment: revoked_at and expires_at are both set to now
// and the acting admin is recorded.
func (a *Admin) Unban(ctx context.Context, punishmentID, adminID string) (*domain.Punishment, error) {
	return a.store.RevokePunishment(ctx, punishmentID, adminID)
}
