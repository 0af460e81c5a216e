// Package httpapi is the chi surface over the moderation core. Routing and
// token issuance belong to the wider platform; these handlers only translate
// HTTP to pipeline calls and errors to the {error, error_code} payload.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campuslink/moderation/internal/comments"
	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/identity"
	"github.com/campuslink/moderation/internal/pipeline"
	"github.com/campuslink/moderation/internal/punish"
	"github.com/campuslink/moderation/internal/storage"
)

// Handlers exposes the moderation core's HTTP operations.
type Handlers struct {
	store    storage.Storage
	pipeline *pipeline.Pipeline
	reader   *comments.Reader
	admin    *punish.Admin
	stream   *Stream
}

func NewHandlers(store storage.Storage, p *pipeline.Pipeline, reader *comments.Reader, admin *punish.Admin, stream *Stream) *Handlers {
	return &Handlers{store: store, pipeline: p, reader: reader, admin: admin, stream: stream}
}

// Routes mounts all handlers on the router.
func (h *Handlers) Routes(r chi.Router) {
	r.Post("/comments", h.createComment)
	r.Get("/notes/{noteID}/comments", h.listNoteComments)
	r.Get("/blogs/{blogID}/comments", h.listBlogComments)

	r.Post("/notes/{noteID}/party/join", h.joinParty)
	r.Post("/notes/{noteID}/party/chat", h.partyChat)

	r.Get("/notifications", h.listNotifications)
	r.Post("/notifications/{id}/read", h.markNotificationRead)
	if h.stream != nil {
		r.Get("/notifications/stream", h.stream.Serve)
	}

	r.Post("/admin/punishments", h.createPunishment)
	r.Post("/admin/punishments/{id}/unban", h.unbanPunishment)
}

type createCommentRequest struct {
	Message  string  `json:"message"`
	NoteID   *string `json:"note_id,omitempty"`
	BlogID   *string `json:"blog_id,omitempty"`
	ParentID *string `json:"parent_comment_id,omitempty"`
	UserID   string  `json:"user_id,omitempty"` // fallback when unauthenticated
}

func (h *Handlers) createComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	comment, err := h.pipeline.CreateComment(r.Context(), pipeline.CreateCommentInput{
		Message:        req.Message,
		NoteID:         req.NoteID,
		BlogID:         req.BlogID,
		ParentID:       req.ParentID,
		FallbackUserID: req.UserID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *Handlers) listNoteComments(w http.ResponseWriter, r *http.Request) {
	tree, err := h.reader.ListByNote(r.Context(), chi.URLParam(r, "noteID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handlers) listBlogComments(w http.ResponseWriter, r *http.Request) {
	tree, err := h.reader.ListByBlog(r.Context(), chi.URLParam(r, "blogID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

type partyRequest struct {
	Message string `json:"message,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

func (h *Handlers) joinParty(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	member, err := h.pipeline.JoinParty(r.Context(), chi.URLParam(r, "noteID"), req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *Handlers) partyChat(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	result, err := h.pipeline.PartyChat(r.Context(), chi.URLParam(r, "noteID"), req.Message, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"delivered":   len(result.Notifications),
		"none_needed": result.NoneNeeded,
	})
}

func (h *Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	args := storage.PaginationArgs{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			args.Limit = n
		}
	}
	if v := r.URL.Query().Get("cursor"); v != "" {
		args.Cursor = &v
	}

	ns, err := h.store.GetNotificationsByRecipient(r.Context(), id.UserID, args)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *Handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	// Ownership is checked before the write so a rejected request cannot
	// consume the recipient's unread state.
	n, err := h.store.GetNotificationByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if n.RecipientID != id.UserID {
		writeError(w, http.StatusForbidden, "not your notification", "")
		return
	}

	n, err = h.store.MarkNotificationRead(r.Context(), n.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type punishRequest struct {
	UserID    *string    `json:"user_id,omitempty"`
	IPAddress *string    `json:"ip_address,omitempty"`
	Type      string     `json:"type"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Admin role checks live in the platform's auth layer in front of this
// service; here only an authenticated identity is required.
func (h *Handlers) createPunishment(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	var req punishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	p, err := h.admin.Punish(r.Context(), punish.PunishInput{
		UserID:    req.UserID,
		IPAddress: req.IPAddress,
		Type:      domain.PunishmentType(req.Type),
		Reason:    req.Reason,
		ExpiresAt: req.ExpiresAt,
		CreatedBy: id.UserID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) unbanPunishment(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	p, err := h.admin.Unban(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
