package common

import (
	"encoding/json"
	"go-auth-api/logger"
	"net/http"

	"github.com/sirupsen/logrus"
)

// AppError is the error envelope every handler returns. Err carries the
// internal cause; it is logged but never serialized.
type AppError struct {
	Success bool   `json:"success"`
	Type    string `json:"type"`
	Code    int    `json:"-"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Success: false,
		Type:    TypeForStatus(code),
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// TypeForStatus returns the machine-readable error type sent to clients.
func TypeForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	default:
		return http.StatusText(code)
	}
}

func (e *AppError) Send(w http.ResponseWriter) {
	if e.Err != nil {
		entry := logger.Log.WithFields(logrus.Fields{
			"status_code":    e.Code,
			"internal_error": e.Err.Error(),
		})
		if e.Code >= http.StatusInternalServerError {
			entry.Error(e.Message)
		} else {
			entry.Warn(e.Message)
		}
	}

	WriteJSON(w, e.Code, e)
}

// Response is the success envelope.
type Response struct {
	Success     bool        `json:"success"`
	Type        string      `json:"type"`
	Message     string      `json:"message"`
	AccessToken string      `json:"accessToken,omitempty"`
	Data        interface{} `json:"data,omitempty"`
}

func NewResponse(code int, message string) *Response {
	t := "OK"
	if code == http.StatusCreated {
		t = "CREATED"
	}
	return &Response{Success: true, Type: t, Message: message}
}

func WriteJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Error("Failed to encode response body")
	}
}
