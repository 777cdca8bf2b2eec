package slashcmd

import (
	"context"
	"fmt"

	"github.com/mattjoyce/rollbot/internal/rollback"
)

//go:generate mockgen -destination=mocks/mock_rollbacker.go -package=mocks github.com/mattjoyce/rollbot/internal/slashcmd Rollbacker

// Rollbacker receives accepted rollback commands. Implementations should
// return quickly; the platform expects a reply within a few seconds.
type Rollbacker interface {
	RequestRollback(ctx context.Context, req rollback.Request) error
}

// ResponseType controls who sees a command reply.
type ResponseType string

const (
	// Ephemeral replies are visible only to the invoking user.
	Ephemeral ResponseType = "ephemeral"
	// InChannel replies are visible to the whole channel.
	InChannel ResponseType = "in_channel"
)

// Response is the JSON body returned to the platform on success.
type Response struct {
	ResponseType ResponseType `json:"response_type"`
	Text         string       `json:"text"`
}

// ErrorResponse is the JSON body for non-2xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client-facing error messages. They never carry failure detail.
const (
	msgMethodNotAllowed   = "Method Not Allowed"
	msgVerificationFailed = "Verification failed"
	msgBadRequest         = "Bad request"
	msgPayloadTooLarge    = "Payload too large"
	msgInternal           = "Internal server error"
)

const (
	// UsageText explains the command syntax.
	UsageText = "Usage: /rollback <project-name>"
	// MissingProjectText is returned when the command has no argument.
	MissingProjectText = "Error: Please provide a project name. " + UsageText
)

// AckText is the acknowledgement sent once a rollback has been handed off.
func AckText(project string) string {
	return fmt.Sprintf("✅ Command received! Preparing rollback for project: *%s*...", project)
}

// DefaultMaxBodySize caps command bodies; the platform sends a few KB at most.
const DefaultMaxBodySize = 64 * 1024
