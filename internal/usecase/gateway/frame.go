package gateway

import (
	"encoding/json"
	"time"

	"github.com/kailas-cloud/intentgate/internal/domain/routing"
)

// Inbound frame types.
const (
	InboundMessage = "message"
	InboundPing    = "ping"
)

// Outbound frame types.
const (
	FrameWelcome       = "welcome"
	FrameResponse      = "response"
	FrameClarification = "clarification"
	FrameError         = "error"
	FramePong          = "pong"
)

// Error codes carried in error frames.
const (
	CodeBadFrame           = "bad_frame"
	CodeRateLimited        = "rate_limited"
	CodeUnauthenticated    = "unauthenticated"
	CodeDimensionMismatch  = "dimension_mismatch"
	CodeRoutingFailed      = "routing_failed"
	CodeHandlerUnavailable = "handler_unavailable"
	CodeHandlerFailed      = "handler_failed"
)

// InboundFrame is a client turn. Embedding is optional; without it the text is embedded server-side.
type InboundFrame struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	Language  string    `json:"language,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Frame is a server-to-client message.
type Frame struct {
	Type          string            `json:"type"`
	ReplyTo       string            `json:"reply_to,omitempty"`
	ConnectionID  string            `json:"connection_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Domain        string            `json:"domain,omitempty"`
	Routing       *routing.Decision `json:"routing,omitempty"`
	Text          string            `json:"text,omitempty"`
	Options       []string          `json:"options,omitempty"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
	Error         *ErrorBody        `json:"error,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// ErrorBody describes why a turn could not be served.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorFrame(replyTo, code, message string) Frame {
	return Frame{
		Type:    FrameError,
		ReplyTo: replyTo,
		Error:   &ErrorBody{Code: code, Message: message},
	}
}
