package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller is expected to react to it.
type Kind string

const (
	KindInvalidArgument    Kind = "invalid_argument"
	KindNotFound           Kind = "not_found"
	KindAdmission          Kind = "admission"
	KindFailedPrecondition Kind = "failed_precondition"
	KindPermissionDenied   Kind = "permission_denied"
	KindTransient          Kind = "transient"
	KindInternal           Kind = "internal"
)

// Error is a domain error with a stable machine-readable Reason.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Reason so wrapped copies still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Reason == t.Reason
}

func newErr(kind Kind, reason, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

// Admission errors: expected, user facing, not retryable until state changes.
var (
	ErrQuotaExceeded = newErr(KindAdmission, "QUOTA_EXCEEDED", "daily swipe limit reached")
	ErrSwiperMatched = newErr(KindAdmission, "SWIPER_ALREADY_MATCHED", "you already have an active match")
	ErrTargetMatched = newErr(KindAdmission, "TARGET_ALREADY_MATCHED", "this user already has an active match")
)

// Not-found errors: the caller holds stale data.
var (
	ErrUserNotFound  = newErr(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrMatchNotFound = newErr(KindNotFound, "MATCH_NOT_FOUND", "match not found")
	ErrPhotoNotFound = newErr(KindNotFound, "PHOTO_NOT_FOUND", "photo not found")
)

var (
	ErrSelfSwipe        = newErr(KindInvalidArgument, "SELF_SWIPE", "cannot swipe on yourself")
	ErrInvalidDirection = newErr(KindInvalidArgument, "INVALID_DIRECTION", "direction must be left or right")
	ErrBadImage         = newErr(KindInvalidArgument, "BAD_IMAGE", "upload is not a decodable image")
	ErrBadPageToken     = newErr(KindInvalidArgument, "INVALID_PAGE_TOKEN", "pagination token is malformed")
	ErrNotParticipant   = newErr(KindPermissionDenied, "NOT_PARTICIPANT", "user is not part of this match")
	ErrMatchInactive    = newErr(KindFailedPrecondition, "MATCH_INACTIVE", "match is no longer active")
	ErrConsentFinal     = newErr(KindFailedPrecondition, "CONSENT_FINAL", "consent has already been given")
	ErrMatchDeclined    = newErr(KindFailedPrecondition, "MATCH_DECLINED", "consent was declined for this match")
	ErrContention       = newErr(KindTransient, "CONTENTION", "concurrent update, retry")
)

// Wrap returns a copy of sentinel carrying cause.
func Wrap(sentinel *Error, cause error) *Error {
	cp := *sentinel
	cp.Cause = cause
	return &cp
}

// KindOf reports the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsAdmission reports whether err is a business-rule rejection of a swipe.
func IsAdmission(err error) bool { return KindOf(err) == KindAdmission }

// IsTransient reports whether err is safe to retry blindly.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }
