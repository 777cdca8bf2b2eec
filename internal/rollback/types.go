// Package rollback holds the collaborators that receive authenticated
// rollback commands. Executing a rollback is not done here: Queue records
// the request durably for an engine to pick up, Noop drops it.
package rollback

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusRequested Status = "requested"
)

// Request is what the command handler forwards once a command is accepted.
type Request struct {
	Project   string
	UserID    string
	ChannelID string
	// Delivery identifies the signed delivery (timestamp and signature), so
	// a platform retry of the same request is recorded once.
	Delivery string
}

// Record is a stored rollback request.
type Record struct {
	ID        string
	Project   string
	UserID    string
	ChannelID string
	Status    Status
	CreatedAt time.Time
}

var (
	ErrNotFound       = errors.New("rollback request not found")
	ErrInvalidRequest = errors.New("invalid rollback request")
)

// Noop accepts every request and does nothing with it.
type Noop struct{}

func (Noop) RequestRollback(ctx context.Context, req Request) error {
	return nil
}
