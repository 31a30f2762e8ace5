package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(code, message string) APIResponse {
	return APIResponse{
		Success:   false,
		Error:     &ErrorBody{Code: code, Message: message},
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

// WriteError is the single place where error codes become HTTP statuses.
// Errors that are not an *AppError are reported as INTERNAL_ERROR without
// leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse(CodeInternal, "An unexpected error occurred"))
		return
	}
	resp := ErrorResponse(appErr.Code, appErr.Message)
	resp.Error.Details = appErr.Details
	WriteJSON(w, appErr.Status(), resp)
}

// DecodeJSON reads a request body into v, reporting malformed input as INVALID_INPUT.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return Invalid(CodeInvalidInput, "Invalid request body: "+err.Error())
	}
	return nil
}
