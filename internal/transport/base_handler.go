package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Envelope is the success shape of every JSON endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *BaseHandler) WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	h.WriteJSON(w, status, Envelope{Success: true, Data: data})
}

func (h *BaseHandler) WriteMessage(w http.ResponseWriter, status int, message string) {
	h.WriteJSON(w, status, Envelope{Success: true, Message: message})
}

// WriteAppError writes the failure envelope for err.
func (h *BaseHandler) WriteAppError(w http.ResponseWriter, err *internal.AppError) {
	if err.StatusCode >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "code", err.Code, "error", err)
	} else {
		h.Logger.Debug("request rejected", "code", err.Code, "message", err.Message)
	}
	status, body := err.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	appErr := &internal.AppError{
		Type:       errorTypeFor(status),
		Code:       internal.ErrorCode(strings.ReplaceAll(strings.ToUpper(http.StatusText(status)), " ", "_")),
		Message:    message,
		StatusCode: status,
	}
	h.WriteAppError(w, appErr)
}

// HandleServiceError maps a service error to its HTTP response. Anything
// that is not an AppError is reported as an internal error.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		h.WriteAppError(w, appErr)
		return
	}
	h.WriteAppError(w, internal.NewInternalError("Internal server error", err))
}

// DecodeJSON reads a bounded JSON body into dst.
func (h *BaseHandler) DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) *internal.AppError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return internal.NewValidationError("Request body is required", internal.ErrCodeInvalidRequest)
		}
		return internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidRequest)
	}
	return nil
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	return BearerToken(r)
}

func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}

func errorTypeFor(status int) internal.ErrorType {
	switch status {
	case http.StatusBadRequest:
		return internal.ErrorTypeValidation
	case http.StatusUnauthorized:
		return internal.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return internal.ErrorTypeForbidden
	case http.StatusNotFound:
		return internal.ErrorTypeNotFound
	case http.StatusConflict:
		return internal.ErrorTypeConflict
	case http.StatusTooManyRequests:
		return internal.ErrorTypeRateLimited
	}
	return internal.ErrorTypeInternal
}
