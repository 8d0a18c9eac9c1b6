package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/docsdesk/docsdesk/internal/model"
	"github.com/docsdesk/docsdesk/internal/server/middleware"
	"github.com/docsdesk/docsdesk/internal/service"
)

// Error types carried in the envelope so clients can tell apart failures
// that share a status code.
const (
	errTypeValidation   = "ValidationError"
	errTypeAlreadyExist = "AlreadyExistError"
	errTypeNotFound     = "NotFound"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	writeTypedError(w, code, "", message, ctx...)
}

func writeTypedError(w http.ResponseWriter, code int, errType, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Type:    errType,
			Message: message,
			Context: ctxMap,
		},
	})
}

// writeServiceError maps errors returned by the service layer onto HTTP
// responses.
func writeServiceError(w http.ResponseWriter, err error, fallbackMsg string) {
	var fe *service.FieldError
	switch {
	case errors.As(err, &fe):
		writeTypedError(w, http.StatusBadRequest, errTypeValidation, fe.Error(),
			map[string]interface{}{"field": fe.Field})
	case errors.Is(err, service.ErrValidation):
		writeTypedError(w, http.StatusBadRequest, errTypeValidation, err.Error())
	case errors.Is(err, service.ErrAlreadyExists):
		writeTypedError(w, http.StatusConflict, errTypeAlreadyExist, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeTypedError(w, http.StatusNotFound, errTypeNotFound, err.Error())
	default:
		code, msg := classifyDBError(err, fallbackMsg)
		writeError(w, code, msg)
	}
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// readFields extracts the named string fields from either a JSON object or
// a URL-encoded form body, depending on the Content-Type. An empty body
// yields empty values.
func readFields(r *http.Request, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		raw := map[string]interface{}{}
		if err := readJSON(r, &raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		for _, n := range names {
			if s, ok := raw[n].(string); ok {
				out[n] = s
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for _, n := range names {
		out[n] = r.PostForm.Get(n)
	}
	return out, nil
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryBool extracts a boolean query parameter. Returns defaultVal if the
// parameter is missing or unparsable.
func queryBool(r *http.Request, key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return defaultVal
	}
	return b
}

// adminID returns the operator behind the current request, or "" for
// unauthenticated routes.
func adminID(r *http.Request) string {
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		return p.AdminID
	}
	return ""
}

// classifyDBError maps common database errors to appropriate HTTP status codes.
// Returns (httpStatus, cleanMessage).
func classifyDBError(err error, fallbackMsg string) (int, string) {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	// Unique constraint violations → 409 Conflict
	case strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry"):
		return http.StatusConflict, fallbackMsg + ": " + msg

	// NOT NULL violations → 400 Bad Request
	case strings.Contains(lower, "not null constraint") ||
		strings.Contains(lower, "null value in column") ||
		strings.Contains(lower, "column cannot be null"):
		return http.StatusBadRequest, fallbackMsg + ": " + msg

	default:
		return http.StatusInternalServerError, fallbackMsg + ": " + msg
	}
}
