package notify

// ResolveError is a caller-input problem: a missing identifier or a broken
// reference. It carries a stable code the HTTP layer surfaces unchanged, as
// opposed to unexpected storage failures which stay generic.
type ResolveError struct {
	Code    string
	Message string
}

func (e *ResolveError) Error() string { return e.Message }

var (
	ErrMissingCommentID = &ResolveError{Code: "MISSING_COMMENT_ID", Message: "comment and reply events require a comment id"}
	ErrMissingTarget    = &ResolveError{Code: "MISSING_TARGET", Message: "event supplies no note, blog or parent comment"}
	ErrNoteNotFound     = &ResolveError{Code: "NOTE_NOT_FOUND", Message: "note not found"}
	ErrBlogNotFound     = &ResolveError{Code: "BLOG_NOT_FOUND", Message: "blog not found"}
	ErrParentNotFound   = &ResolveError{Code: "PARENT_COMMENT_NOT_FOUND", Message: "parent comment not found"}
)
