// Package ingest defines the contract of workout history importers.
package ingest

import (
	"context"
	"io"
)

// Provider imports one export format into a user's history.
type Provider interface {
	Ingest(ctx context.Context, r io.Reader, userID string) (*Result, error)
}

// Result holds the outcome of an ingest operation.
type Result struct {
	SessionsReceived int `json:"sessions_received"`
	SessionsInserted int `json:"sessions_inserted"`
	SessionsReplaced int `json:"sessions_replaced"`

	SetsReceived int `json:"sets_received"`

	Message string `json:"message,omitempty"`
}
