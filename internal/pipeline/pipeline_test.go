package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/campuslink/moderation/internal/domain"
	"github.com/campuslink/moderation/internal/identity"
	"github.com/campuslink/moderation/internal/notify"
	"github.com/campuslink/moderation/internal/punish"
	"github.com/campuslink/moderation/internal/ratelimit"
	"github.com/campuslink/moderation/internal/storage"
	"github.com/campuslink/moderation/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

type env struct {
	store    *inmemory.Store
	pipeline *Pipeline
	clock    *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newEnv(t *testing.T) *env {
	t.Helper()
	store := inmemory.New()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store.Now = clock.Now

	gate := punish.NewGate(store, punish.WithClock(clock.Now))
	limiter := ratelimit.NewPool(5*time.Second, 64, ratelimit.WithClock(clock.Now))
	engine := notify.NewEngine(store, nil)

	return &env{
		store:    store,
		pipeline: New(store, gate, limiter, engine),
		clock:    clock,
	}
}

func (e *env) as(userID string) context.Context {
	return identity.WithIdentity(context.Background(), identity.Identity{UserID: userID, IPAddress: "198.51.100.1"})
}

func (e *env) notifications(t *testing.T, recipientID string) []*domain.Notification {
	t.Helper()
	ns, err := e.store.GetNotificationsByRecipient(context.Background(), recipientID, storage.PaginationArgs{})
	require.NoError(t, err)
	return ns
}

// Clean user posts a comment on someone else's note: the gate allows and
// the owner is notified.
func TestCreateComment_NotifiesNoteOwner(t *testing.T) {
	e := newEnv(t)
	owner := e.store.SeedUser(&domain.User{UserName: "Owner", LoginName: "owner"})
	commenter := e.store.SeedUser(&domain.User{UserName: "Commenter", LoginName: "commenter"})
	note := e.store.SeedNote(&domain.Note{UserID: owner.ID, Content: "note", ExpiresAt: e.clock.Now().Add(time.Hour)})

	comment, err := e.pipeline.CreateComment(e.as(commenter.ID), CreateCommentInput{
		Message: "nice note",
		NoteID:  &note.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, comment.ID)

	ns := e.notifications(t, owner.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, owner.ID, ns[0].RecipientID)
	assert.Equal(t, commenter.ID, ns[0].SenderID)
	assert.Equal(t, domain.NotifyComment, ns[0].Type)
	require.NotNil(t, ns[0].CommentID)
	assert.Equal(t, comment.ID, *ns[0].CommentID)
}

// A user under an active timeout is denied before anything is persisted.
func TestCreateComment_TimeoutDeniesEverything(t *testing.T) {
	e := newEnv(t)
	owner := e.store.SeedUser(&domain.User{UserName: "Owner", LoginName: "owner"})
	blocked := e.store.SeedUser(&domain.User{UserName: "Blocked", LoginName: "blocked"})
	note := e.store.SeedNote(&domain.Note{UserID: owner.ID, Content: "note", ExpiresAt: e.clock.Now().Add(time.Hour)})

	_, err := e.store.CreatePunishment(context.Background(), &domain.Punishment{
		UserID:    &blocked.ID,
		Type:      domain.PunishTimeout,
		CreatedBy: "admin-1",
	})
	require.NoError(t, err)

	_, err = e.pipeline.CreateComment(e.as(blocked.ID), CreateCommentInput{
		Message: "should not land",
		NoteID:  &note.ID,
	})

	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, punish.ReasonRestricted, policyErr.Message)
	assert.False(t, policyErr.RateLimited())

	tree, err := e.store.GetCommentsByNoteID(context.Background(), note.ID)
	require.NoError(t, err)
	assert.Empty(t, tree)
	assert.Empty(t, e.notifications(t, owner.ID))
}

// Reply with a caller-supplied blog id: the notification carries the
// parent's thread and type reply.
func TestCreateComment_ReplyPrecedence(t *testing.T) {
	e := newEnv(t)
	blogOwner := e.store.SeedUser(&domain.User{UserName: "BlogOwner", LoginName: "blogowner"})
	parentAuthor := e.store.SeedUser(&domain.User{UserName: "ParentAuthor", LoginName: "parentauthor"})
	replier := e.store.SeedUser(&domain.User{UserName: "Replier", LoginName: "replier"})
	blog := e.store.SeedBlog(&domain.Blog{UserID: blogOwner.ID, Title: "b", Content: "c"})

	parent, err := e.pipeline.CreateComment(e.as(parentAuthor.ID), CreateCommentInput{
		Message: "parent",
		BlogID:  &blog.ID,
	})
	require.NoError(t, err)

	reply, err := e.pipeline.CreateComment(e.as(replier.ID), CreateCommentInput{
		Message:  "reply",
		BlogID:   &blog.ID, // supplied alongside the parent; parent wins
		ParentID: &parent.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.BlogID)
	assert.Equal(t, blog.ID, *reply.BlogID)

	ns := e.notifications(t, parentAuthor.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, domain.NotifyReply, ns[0].Type)
	require.NotNil(t, ns[0].ParentID)
	assert.Equal(t, parent.ID, *ns[0].ParentID)
	require.NotNil(t, ns[0].BlogID)
	assert.Equal(t, blog.ID, *ns[0].BlogID)
	assert.Nil(t, ns[0].NoteID)
}

// Two comments on the same note inside the cool-down: the second is
// rejected with the rate-limit code and only one comment lands.
func TestCreateComment_RateLimitedWithinCooldown(t *testing.T) {
	e := newEnv(t)
	owner := e.store.SeedUser(&domain.User{UserName: "Owner", LoginName: "owner"})
	commenter := e.store.SeedUser(&domain.User{UserName: "Commenter", LoginName: "commenter"})
	note := e.store.SeedNote(&domain.Note{UserID: owner.ID, Content: "note", ExpiresAt: e.clock.Now().Add(time.Hour)})

	_, err := e.pipeline.CreateComment(e.as(commenter.ID), CreateCommentInput{
		Message: "first",
		NoteID:  &note.ID,
	})
	require.NoError(t, err)

	e.clock.Advance(time.Second)
	_, err = e.pipeline.CreateComment(e.as(commenter.ID), CreateCommentInput{
		Message: "second",
		NoteID:  &note.ID,
	})

	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, CodeCommentRateLimit, policyErr.Code)

	rows, err := e.store.GetCommentsByNoteID(context.Background(), note.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	// After the window the user may post again.
	e.clock.Advance(10 * time.Second)
	_, err = e.pipeline.CreateComment(e.as(commenter.ID), CreateCommentInput{
		Message: "third",
		NoteID:  &note.ID,
	})
	require.NoError(t, err)
}

func TestCreateComment_MissingTarget(t *testing.T) {
	e := newEnv(t)
	user := e.store.SeedUser(&domain.User{UserName: "U", LoginName: "u"})

	_, err := e.pipeline.CreateComment(e.as(user.ID), CreateCommentInput{Message: "hi"})
	assert.ErrorIs(t, err, notify.ErrMissingTarget)
}

func TestCreateComment_UnknownTargets(t *testing.T) {
	e := newEnv(t)
	user := e.store.SeedUser(&domain.User{UserName: "U", LoginName: "u"})

	_, err := e.pipeline.CreateComment(e.as(user.ID), CreateCommentInput{Message: "hi", NoteID: strPtr("missing")})
	assert.ErrorIs(t, err, notify.ErrNoteNotFound)

	_, err = e.pipeline.CreateComment(e.as(user.ID), CreateCommentInput{Message: "hi", BlogID: strPtr("missing")})
	assert.ErrorIs(t, err, notify.ErrBlogNotFound)

	_, err = e.pipeline.CreateComment(e.as(user.ID), CreateCommentInput{Message: "hi", ParentID: strPtr("missing")})
	assert.ErrorIs(t, err, notify.ErrParentNotFound)
}

func TestCreateComment_FallbackUserOnlyWhenAnonymous(t *testing.T) {
	e := newEnv(t)
	owner := e.store.SeedUser(&domain.User{UserName: "Owner", LoginName: "owner"})
	note := e.store.SeedNote(&domain.Note{UserID: owner.ID, Content: "note", ExpiresAt: e.clock.Now().Add(time.Hour)})

	// No authenticated identity: the body field is honored.
	ctx := identity.WithIdentity(context.Background(), identity.Identity{IPAddress: "198.51.100.9"})
	c, err := e.pipeline.CreateComment(ctx, CreateCommentInput{
		Message:        "via fallback",
		NoteID:         &note.ID,
		FallbackUserID: "body-user",
	})
	require.NoError(t, err)
	assert.Equal(t, "body-user", c.UserID)

	// Authenticated identity wins over the body field.
	c, err = e.pipeline.CreateComment(e.as("token-user"), CreateCommentInput{
		Message:        "via token",
		NoteID:         &note.ID,
		FallbackUserID: "body-user",
	})
	require.NoError(t, err)
	assert.Equal(t, "token-user", c.UserID)
}

// Comment rows, party memberships and notification senders all carry a user
// id, so a write with no resolvable user is rejected before it reaches the
// store — the same way on every backend.
func TestWrites_RequireResolvableUser(t *testing.T) {
	e := newEnv(t)
	owner := e.store.SeedUser(&domain.User{UserName: "Owner", LoginName: "owner"})
	note := e.store.SeedNote(&domain.Note{UserID: owner.ID, Content: "note", ExpiresAt: e.clock.Now().Add(time.Hour)})

	ctx := identity.WithIdentity(context.Background(), identity.Identity{IPAddress: "198.51.100.9"})

	_, err := e.pipeline.CreateComment(ctx, CreateCommentInput{Message: "hi", NoteID: &note.ID})
	var rErr *notify.ResolveError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, "MISSING_USER", rErr.Code)

	comments, err := e.store.GetCommentsByNoteID(ctx, note.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	_, err = e.pipeline.JoinParty(ctx, note.ID, "")
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, "MISSING_USER", rErr.Code)

	_, err = e.pipeline.PartyChat(ctx, note.ID, "hello", "")
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, "MISSING_USER", rErr.Code)
}

// Party on a note with owner and two members: a member joining notifies
// everyone but themselves.
func TestJoinParty_FanOut(t *testing.T) {
	e := newEnv(t)
	owner := e.store.SeedUser(&domain.User{UserName: "U1", LoginName: "u1"})
	u2 := e.store.SeedUser(&domain.User{UserName: "U2", LoginName: "u2"})
	u3 := e.store.SeedUser(&domain.User{UserName: "U3", LoginName: "u3"})
	note := e.store.SeedNote(&domain.Note{UserID: owner.ID, Content: "party", ExpiresAt: e.clock.Now().Add(time.Hour)})

	_, err := e.store.AddPartyMember(context.Background(), &domain.PartyMember{NoteID: note.ID, UserID: owner.ID})
	require.NoError(t, err)
	_, err = e.store.AddPartyMember(context.Background(), &domain.PartyMember{NoteID: note.ID, UserID: u3.ID})
	require.NoError(t, err)

	member, err := e.pipeline.JoinParty(e.as(u2.ID), note.ID, "")
	require.NoError(t, err)
	assert.Equal(t, u2.ID, member.UserID)

	assert.Len(t, e.notifications(t, owner.ID), 1)
	assert.Len(t, e.notifications(t, u3.ID), 1)
	assert.Empty(t, e.notifications(t, u2.ID))
	for _, n := range e.notifications(t, owner.ID) {
		assert.Equal(t, domain.NotifyPartyJoin, n.Type)
	}
}

func TestJoinParty_UnknownNote(t *testing.T) {
	e := newEnv(t)
	user := e.store.SeedUser(&domain.User{UserName: "U", LoginName: "u"})

	_, err := e.pipeline.JoinParty(e.as(user.ID), "missing", "")
	assert.ErrorIs(t, err, notify.ErrNoteNotFound)
}

func TestPartyChat_DeliversToPartyMinusSender(t *testing.T) {
	e := newEnv(t)
	owner := e.store.SeedUser(&domain.User{UserName: "Owner", LoginName: "owner"})
	member := e.store.SeedUser(&domain.User{UserName: "Member", LoginName: "member"})
	note := e.store.SeedNote(&domain.Note{UserID: owner.ID, Content: "party", ExpiresAt: e.clock.Now().Add(time.Hour)})

	_, err := e.store.AddPartyMember(context.Background(), &domain.PartyMember{NoteID: note.ID, UserID: member.ID})
	require.NoError(t, err)

	result, err := e.pipeline.PartyChat(e.as(member.ID), note.ID, "anyone here?", "")
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, owner.ID, result.Notifications[0].RecipientID)
	assert.Equal(t, domain.NotifyPartyChat, result.Notifications[0].Type)
}

func TestPartyChat_SoloPartyIsNoneNeeded(t *testing.T) {
	e := newEnv(t)
	owner := e.store.SeedUser(&domain.User{UserName: "Owner", LoginName: "owner"})
	note := e.store.SeedNote(&domain.Note{UserID: owner.ID, Content: "party", ExpiresAt: e.clock.Now().Add(time.Hour)})

	result, err := e.pipeline.PartyChat(e.as(owner.ID), note.ID, "echo", "")
	require.NoError(t, err)
	assert.True(t, result.NoneNeeded)
}

// A failing notification fan-out never fails the comment write.
func TestCreateComment_SurvivesNotifyFailure(t *testing.T) {
	e := newEnv(t)
	owner := e.store.SeedUser(&domain.User{UserName: "Owner", LoginName: "owner"})
	commenter := e.store.SeedUser(&domain.User{UserName: "C", LoginName: "c"})
	note := e.store.SeedNote(&domain.Note{UserID: owner.ID, Content: "note", ExpiresAt: e.clock.Now().Add(time.Hour)})

	failing := &notifyFailingStore{Storage: e.store}
	gate := punish.NewGate(failing, punish.WithClock(e.clock.Now))
	limiter := ratelimit.NewPool(5*time.Second, 64, ratelimit.WithClock(e.clock.Now))
	p := New(failing, gate, limiter, notify.NewEngine(failing, nil))

	comment, err := p.CreateComment(e.as(commenter.ID), CreateCommentInput{
		Message: "still lands",
		NoteID:  &note.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, comment.ID)
	assert.Empty(t, e.notifications(t, owner.ID))
}

// notifyFailingStore fails only notification writes.
type notifyFailingStore struct {
	storage.Storage
}

func (s *notifyFailingStore) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	return nil, assert.AnError
}

func (s *notifyFailingStore) CreateNotifications(ctx context.Context, ns []*domain.Notification) ([]*domain.Notification, error) {
	return nil, assert.AnError
}
