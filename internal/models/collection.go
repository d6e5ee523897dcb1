package models

import "github.com/google/uuid"

// CollectionPage is the result of a delta read: every record modified after
// Since, plus the server timestamp Until captured at read time.
type CollectionPage struct {
	UUID  uuid.UUID
	Since int64
	Until int64
	Apps  []AppRecord
}

// WriteResult reports the outcome of a successful write.
type WriteResult struct {
	UUID  uuid.UUID
	Until int64
}

// DeleteRequest carries the audit payload of a collection deletion. The
// server records it but never interprets it.
type DeleteRequest struct {
	ClientID string `json:"client_id"`
	Reason   string `json:"reason"`
}

// Identity is a verified assertion: the email the sync namespace is keyed by.
type Identity struct {
	Email      string
	Audience   string
	Issuer     string
	ValidUntil int64
}
