package api

import (
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mapping struct {
	httpStatus int
	reason     string
	// withDetails keeps collected details in the response body.
	withDetails bool
}

var byCode = map[codes.Code]mapping{
	codes.InvalidArgument:    {http.StatusBadRequest, "INVALID_ARGUMENT", true},
	codes.Unauthenticated:    {http.StatusUnauthorized, "UNAUTHORIZED", false},
	codes.PermissionDenied:   {http.StatusForbidden, "FORBIDDEN", false},
	codes.NotFound:           {http.StatusNotFound, "NOT_FOUND", false},
	codes.AlreadyExists:      {http.StatusConflict, "CONFLICT", true},
	codes.FailedPrecondition: {http.StatusPreconditionFailed, "FAILED_PRECONDITION", true},
	codes.ResourceExhausted:  {http.StatusTooManyRequests, "RATE_LIMITED", true},
	codes.Unavailable:        {http.StatusServiceUnavailable, "UNAVAILABLE", false},
	codes.DeadlineExceeded:   {http.StatusServiceUnavailable, "UNAVAILABLE", false},
}

// WriteStatusError renders an apperr status error as the JSON error
// envelope. An ErrorInfo reason replaces the default code; field and
// precondition violations become details. Errors without a status are 500s.
func WriteStatusError(w http.ResponseWriter, requestID string, err error) {
	st, ok := status.FromError(err)
	if !ok {
		Internal(w, requestID)
		return
	}
	m, known := byCode[st.Code()]
	if !known {
		m = mapping{httpStatus: http.StatusInternalServerError, reason: "INTERNAL"}
	}

	p := Problem{Code: m.reason, Message: st.Message(), RequestID: requestID}
	details := collectDetails(st, &p.Code)
	if m.withDetails && len(details) > 0 {
		p.Details = details
	}
	WriteProblem(w, m.httpStatus, p)
}

func collectDetails(st *status.Status, reason *string) map[string]any {
	details := map[string]any{}
	for _, d := range st.Details() {
		switch v := d.(type) {
		case *errdetails.ErrorInfo:
			if v.GetReason() != "" {
				*reason = v.GetReason()
			}
			for k, val := range v.GetMetadata() {
				details[k] = val
			}
		case *errdetails.BadRequest:
			for _, fv := range v.GetFieldViolations() {
				if fv.GetField() != "" {
					details[fv.GetField()] = fv.GetDescription()
				}
			}
		case *errdetails.PreconditionFailure:
			for _, pv := range v.GetViolations() {
				if pv.GetSubject() != "" {
					details[pv.GetSubject()] = pv.GetDescription()
				}
			}
		}
	}
	return details
}
