package service

// ErrorKind 业务错误分类，决定对外返回的状态码
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
)

// Error 业务错误，可直接展示给用户
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidUser    = newError(KindValidation, "invalid_user", "user id is required")
	ErrEmptyContent   = newError(KindValidation, "empty_content", "message content cannot be empty")
	ErrContentTooLong = newError(KindValidation, "content_too_long", "message content is too long")
	ErrSelfRequest    = newError(KindValidation, "self_request", "cannot send a friend request to yourself")
	ErrSelfMessage    = newError(KindValidation, "self_message", "cannot send a message to yourself")

	ErrAlreadyFriends       = newError(KindConflict, "already_friends", "you are already friends")
	ErrRequestAlreadyExists = newError(KindConflict, "request_exists", "a friend request is already pending")
	ErrRequestNotPending    = newError(KindConflict, "request_not_pending", "friend request is no longer pending")

	ErrNotFriends           = newError(KindNotFound, "not_friends", "you are not friends")
	ErrRequestNotFound      = newError(KindNotFound, "request_not_found", "friend request not found")
	ErrNotificationNotFound = newError(KindNotFound, "notification_not_found", "notification not found")

	ErrNotRequestReceiver = newError(KindForbidden, "not_request_receiver", "only the receiver can respond to this request")
	ErrNotRequestSender   = newError(KindForbidden, "not_request_sender", "only the sender can cancel this request")
)
