package api

import "net/http"

// Envelope is the body of every error response:
//
//	{"error": {"code": "...", "message": "...", "details": {...}, "request_id": "..."}}
type Envelope struct {
	Error Problem `json:"error"`
}

// Problem describes one failed request. Code is a stable machine reason
// such as NOT_FOUND or COMMENT_DELETED; Message is for humans.
type Problem struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// WriteProblem writes p with the given HTTP status. Error bodies are never
// cacheable.
func WriteProblem(w http.ResponseWriter, httpStatus int, p Problem) {
	w.Header().Set("Cache-Control", "no-store")
	if httpStatus == http.StatusServiceUnavailable || httpStatus == http.StatusTooManyRequests {
		if w.Header().Get("Retry-After") == "" {
			w.Header().Set("Retry-After", "1")
		}
	}
	WriteJSON(w, httpStatus, Envelope{Error: p})
}

func BadRequest(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteProblem(w, http.StatusBadRequest, Problem{code, message, details, requestID})
}

func Unauthorized(w http.ResponseWriter, code, message, requestID string) {
	WriteProblem(w, http.StatusUnauthorized, Problem{Code: code, Message: message, RequestID: requestID})
}

func Forbidden(w http.ResponseWriter, code, message, requestID string) {
	WriteProblem(w, http.StatusForbidden, Problem{Code: code, Message: message, RequestID: requestID})
}

func NotFound(w http.ResponseWriter, code, message, requestID string) {
	WriteProblem(w, http.StatusNotFound, Problem{Code: code, Message: message, RequestID: requestID})
}

func RateLimited(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteProblem(w, http.StatusTooManyRequests, Problem{code, message, details, requestID})
}

// Internal hides the cause; it is logged by the caller.
func Internal(w http.ResponseWriter, requestID string) {
	WriteProblem(w, http.StatusInternalServerError, Problem{Code: "INTERNAL", Message: "Internal server error", RequestID: requestID})
}
