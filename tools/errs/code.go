package errs

// Error codes on the wire. 1xxx argument/auth, 2xxx engine state,
// 3xxx external collaborators, 500 catch-all.
var (
	ErrArgs         = NewCodeError(1001, "invalid argument")
	ErrTokenExpired = NewCodeError(1501, "token missing or expired")

	// Registry / transport state.
	ErrNotRegistered = NewCodeError(2001, "connection not registered")
	ErrConnExists    = NewCodeError(2002, "connection id already registered")

	// Routing rejections: conversation state is unchanged, the sender
	// gets these synchronously.
	ErrConversationMissing = NewCodeError(2101, "conversation not found")
	ErrConversationClosed  = NewCodeError(2102, "conversation is closed")

	// Persistence failure during message create: retryable, nothing
	// was fanned out.
	ErrMessageNotSent = NewCodeError(3001, "message not persisted, retry")

	ErrInternal = NewCodeError(500, "internal error")
)

// Retryable reports whether the sender may retry the same operation
// unchanged.
func Retryable(err error) bool {
	return IsCode(err, ErrMessageNotSent)
}
