// Package apperr builds the gRPC status errors every service returns, and
// classifies raw driver errors into that taxonomy.
package apperr

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/animestream/internal/platform/docstore"
)

const domain = "animestream"

// Reason codes carried in errdetails.ErrorInfo.
const (
	ReasonValidation   = "VALIDATION_FAILED"
	ReasonNotFound     = "NOT_FOUND"
	ReasonForbidden    = "FORBIDDEN"
	ReasonUnauth       = "UNAUTHENTICATED"
	ReasonMissingIndex = "MISSING_INDEX"
	ReasonNetwork      = "NETWORK"
	ReasonInternal     = "INTERNAL"
)

// NetworkMessage is the user-facing copy for connectivity failures.
const NetworkMessage = "network error: check your connection and try again"

func withInfo(c codes.Code, reason, msg string, metadata map[string]string, extra ...*errdetails.BadRequest) error {
	st := status.New(c, msg)
	info := &errdetails.ErrorInfo{Reason: reason, Domain: domain, Metadata: metadata}
	var st2 *status.Status
	var err error
	if len(extra) > 0 && extra[0] != nil {
		st2, err = st.WithDetails(info, extra[0])
	} else {
		st2, err = st.WithDetails(info)
	}
	if err != nil {
		return st.Err()
	}
	return st2.Err()
}

// InvalidArgument reports boundary validation failures, one description per
// offending field.
func InvalidArgument(msg string, fieldViolations map[string]string) error {
	bad := &errdetails.BadRequest{}
	for field, desc := range fieldViolations {
		bad.FieldViolations = append(bad.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: field, Description: desc})
	}
	return withInfo(codes.InvalidArgument, ReasonValidation, msg, nil, bad)
}

func NotFound(msg string) error {
	return withInfo(codes.NotFound, ReasonNotFound, msg, nil)
}

func PermissionDenied(msg string) error {
	return withInfo(codes.PermissionDenied, ReasonForbidden, msg, nil)
}

func Unauthenticated(msg string) error {
	return withInfo(codes.Unauthenticated, ReasonUnauth, msg, nil)
}

// FailedPrecondition is used for state conflicts such as reacting to a
// tombstoned comment.
func FailedPrecondition(reason, msg string) error {
	return withInfo(codes.FailedPrecondition, reason, msg, nil)
}

// MissingIndex carries the diagnostic naming the query shape that needs a
// composite index.
func MissingIndex(op, diagnostic string) error {
	st := status.New(codes.FailedPrecondition, "missing composite index for "+op+": "+diagnostic)
	info := &errdetails.ErrorInfo{Reason: ReasonMissingIndex, Domain: domain, Metadata: map[string]string{"op": op}}
	pf := &errdetails.PreconditionFailure{Violations: []*errdetails.PreconditionFailure_Violation{{
		Type: "INDEX", Subject: "query", Description: diagnostic,
	}}}
	st2, err := st.WithDetails(info, pf)
	if err != nil {
		return st.Err()
	}
	return st2.Err()
}

func Unavailable() error {
	return withInfo(codes.Unavailable, ReasonNetwork, NetworkMessage, nil)
}

func Internal(msg string) error {
	return withInfo(codes.Internal, ReasonInternal, msg, nil)
}

// Wrap normalizes err for the caller. Status errors pass through unchanged;
// docstore sentinels, network failures and deadlines are classified; anything
// else becomes Internal carrying the original message.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded:
			return Unavailable()
		}
		return err
	}
	switch {
	case docstore.IsMissingIndex(err):
		return MissingIndex(op, diagnostic(err))
	case docstore.IsNotFound(err):
		return NotFound(op + ": not found")
	case IsNetwork(err):
		return Unavailable()
	}
	return Internal(op + ": " + err.Error())
}

// IsNetwork reports whether err looks like a connectivity failure.
func IsNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

func diagnostic(err error) string {
	msg := err.Error()
	return strings.TrimPrefix(msg, docstore.ErrMissingIndex.Error()+": ")
}

// Code returns the gRPC code of err (codes.Unknown for non-status errors).
func Code(err error) codes.Code {
	return status.Code(err)
}

// IsMissingIndex reports whether err is a MissingIndex status or a raw
// docstore missing-index error.
func IsMissingIndex(err error) bool {
	if err == nil {
		return false
	}
	if docstore.IsMissingIndex(err) {
		return true
	}
	return Reason(err) == ReasonMissingIndex
}

// Reason returns the ErrorInfo reason attached to a status error, if any.
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.Reason
		}
	}
	return ""
}
