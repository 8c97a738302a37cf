// Package httputil holds the JSON request/response helpers shared by handlers
// and middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
	"github.com/R3E-Network/menu_layer/pkg/logger"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrorBody is the JSON body of every non-2xx answer.
type ErrorBody struct {
	Error ErrorResponse `json:"error"`
}

// ErrorResponse describes one failure.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	TraceID string                 `json:"trace_id,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a bare error body.
func WriteError(w http.ResponseWriter, status int, code svcerrors.ErrorCode, message string) {
	WriteJSON(w, status, ErrorBody{Error: ErrorResponse{Code: string(code), Message: message}})
}

// WriteErrorResponse maps err onto an HTTP answer. Unknown errors become a 500
// whose message does not leak internals.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{TraceID: logger.GetTraceID(r.Context())}
	status := http.StatusInternalServerError

	if se := svcerrors.GetServiceError(err); se != nil {
		resp.Code = string(se.Code)
		resp.Message = se.Message
		resp.Details = se.Details
		if se.HTTPStatus != 0 {
			status = se.HTTPStatus
		}
		if status >= 500 && se.Code == svcerrors.CodeInternal {
			resp.Message = "internal server error"
		}
	} else {
		resp.Code = string(svcerrors.CodeInternal)
		resp.Message = "internal server error"
	}

	WriteJSON(w, status, ErrorBody{Error: resp})
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, svcerrors.CodeValidation, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, svcerrors.CodeUnauthorized, message)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, svcerrors.CodeNotFound, message)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, svcerrors.CodeInternal, message)
}

// DecodeJSON decodes the request body into v, answering 400 on failure.
// It returns false when the handler should stop.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		BadRequest(w, "content type must be application/json")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, svcerrors.CodeValidation, "request body too large")
			return false
		}
		BadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// RequireUserID returns the authenticated user ID placed in the context by the
// auth middleware, answering 401 when absent.
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := logger.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "authentication required")
		return "", false
	}
	return userID, true
}

// ReadAllWithLimit reads at most limit bytes from r. Longer input is truncated.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

// ReadAllStrict reads r and fails when it exceeds limit bytes.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("payload exceeds %d bytes", limit)
	}
	return data, nil
}
