// Package api serves the engine views over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// ApiResponse is the envelope of every response.
type ApiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ResponseWriter writes ApiResponse envelopes.
type ResponseWriter struct {
	Writer http.ResponseWriter
	logger log.FieldLogger
}

// NewResponseWriter creates a new ResponseWriter with the given http.ResponseWriter
func NewResponseWriter(w http.ResponseWriter, logger log.FieldLogger) *ResponseWriter {
	return &ResponseWriter{Writer: w, logger: logger}
}

// SendJSON sends a JSON response with the given status code and data
func (rw *ResponseWriter) SendJSON(statusCode int, data interface{}) {
	rw.Writer.Header().Set("Content-Type", "application/json")
	rw.Writer.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.Writer).Encode(data); err != nil {
		rw.logger.WithError(err).Warn("failed to encode response")
	}
}

// SendSuccess sends a successful API response
func (rw *ResponseWriter) SendSuccess(statusCode int, message string, data interface{}) {
	rw.SendJSON(statusCode, ApiResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SendError sends an error API response
func (rw *ResponseWriter) SendError(statusCode int, message string) {
	rw.SendJSON(statusCode, ApiResponse{
		Success: false,
		Error:   message,
	})
}
