package comments

import (
	"context"
	"fmt"

	loaders "github.com/campuslink/moderation/internal/dataloader"
	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/storage"
	"github.com/graph-gophers/dataloader"
)

// Reader serves assembled comment threads with the denormalized author
// fields filled in.
type Reader struct {
	store storage.Storage
}

func NewReader(store storage.Storage) *Reader {
	return &Reader{store: store}
}

// ListByNote returns the assembled comment tree for a note's thread.
func (r *Reader) ListByNote(ctx context.Context, noteID string) ([]*domain.Comment, error) {
	rows, err := r.store.GetCommentsByNoteID(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("load note thread: %w", err)
	}
	return r.enrichAndAssemble(ctx, rows)
}

// ListByBlog returns the assembled comment tree for a blog's thread.
func (r *Reader) ListByBlog(ctx context.Context, blogID string) ([]*domain.Comment, error) {
	rows, err := r.store.GetCommentsByBlogID(ctx, blogID)
	if err != nil {
		return nil, fmt.Errorf("load blog thread: %w", err)
	}
	return r.enrichAndAssemble(ctx, rows)
}

func (r *Reader) enrichAndAssemble(ctx context.Context, rows []*domain.Comment) ([]*domain.Comment, error) {
	users, err := r.loadAuthors(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("load comment authors: %w", err)
	}
	for _, row := range rows {
		if u, ok := users[row.UserID]; ok && u != nil {
			row.UserName = u.UserName
			row.LoginName = u.LoginName
			row.Img = u.Img
		}
	}
	return Assemble(rows), nil
}

// loadAuthors batches author lookups through the request's dataloader when
// one is present, otherwise with a single direct query.
func (r *Reader) loadAuthors(ctx context.Context, rows []*domain.Comment) (map[string]*domain.User, error) {
	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.UserID]; ok {
			continue
		}
		seen[row.UserID] = struct{}{}
		ids = append(ids, row.UserID)
	}
	if len(ids) == 0 {
		return map[string]*domain.User{}, nil
	}

	l := loaders.For(ctx)
	if l == nil {
		return r.store.GetUsersByIDs(ctx, ids)
	}

	thunks := make([]dataloader.Thunk, len(ids))
	for i, id := range ids {
		thunks[i] = l.UserByID.Load(ctx, dataloader.StringKey(id))
	}
	users := make(map[string]*domain.User, len(ids))
	for i, thunk := range thunks {
		data, err := thunk()
		if err != nil {
			return nil, err
		}
		if u, ok := data.(*domain.User); ok && u != nil {
			users[ids[i]] = u
		}
	}
	return users, nil
}
