// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/durationpb"
	"gorm.io/gorm"
)

const errorDomain = "campus-match"

// RetryDelay is advertised to clients on transient failures.
var RetryDelay = durationpb.New(200 * time.Millisecond)

// Map converts domain/repo/infra errors into gRPC status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var de *Error
	if errors.As(err, &de) {
		return fromDomain(de)
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	case IsRetryableDB(err):
		return fromDomain(Wrap(ErrContention, err))

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func fromDomain(e *Error) error {
	code := codes.Internal
	switch e.Kind {
	case KindInvalidArgument:
		code = codes.InvalidArgument
	case KindNotFound:
		code = codes.NotFound
	case KindAdmission:
		code = codes.FailedPrecondition
		if e.Reason == ErrQuotaExceeded.Reason {
			code = codes.ResourceExhausted
		}
	case KindFailedPrecondition:
		code = codes.FailedPrecondition
	case KindPermissionDenied:
		code = codes.PermissionDenied
	case KindTransient:
		code = codes.Aborted
	}

	st := status.New(code, e.Message)
	details := []protoadapt.MessageV1{&errdetails.ErrorInfo{
		Reason: e.Reason,
		Domain: errorDomain,
	}}
	if e.Kind == KindTransient {
		details = append(details, &errdetails.RetryInfo{RetryDelay: RetryDelay})
	}
	if withDetails, err := st.WithDetails(details...); err == nil {
		st = withDetails
	}
	return st.Err()
}

// ReasonOf extracts the ErrorInfo reason from a status error produced by Map.
func ReasonOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// PermissionDenied creates a gRPC PermissionDenied error.
func PermissionDenied(msg string) error {
	return status.Error(codes.PermissionDenied, msg)
}
