package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/campuslink/moderation/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders holds the request-scoped batch loaders.
type Loaders struct {
	UserByID *dataloader.Loader
}

// New builds fresh loaders over the store. Each loader batches all keys
// requested within the wait window into one storage query.
func New(store storage.Storage) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]string, len(keys))
		for i, k := range keys {
			ids[i] = k.String()
		}

		users, err := store.GetUsersByIDs(ctx, ids)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Results must line up with the requested key order. A missing user
		// yields nil data, not an error: comments may outlive accounts.
		for i, id := range ids {
			results[i] = &dataloader.Result{Data: users[id]}
		}
		return results
	}

	return &Loaders{
		UserByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond*1)),
	}
}

// Middleware injects request-scoped loaders into the context.
func Middleware(store storage.Storage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), key, New(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// For extracts the loaders from the context; nil when the middleware did
// not run (library callers fall back to direct queries).
func For(ctx context.Context) *Loaders {
	if v := ctx.Value(key); v != nil {
		if l, ok := v.(*Loaders); ok {
			return l
		}
	}
	return nil
}
