package handlers

import (
	"context"

	"github.com/dimitrije/appsync-api/internal/models"
)

// StorageInterface defines the storage contract methods used by handlers
type StorageInterface interface {
	ReadSince(ctx context.Context, user, collection string, since int64) (*models.CollectionPage, error)
	Write(ctx context.Context, user, collection string, apps []models.AppRecord, lastGet *int64) (*models.WriteResult, error)
	Delete(ctx context.Context, user, collection string, req models.DeleteRequest) error
	HealthCheck(ctx context.Context) error
}

// VerifierInterface defines the identity-assertion verification boundary
type VerifierInterface interface {
	Verify(ctx context.Context, assertion, audience string) (*models.Identity, error)
}

// SessionServiceInterface defines the methods used by handlers from SessionService
type SessionServiceInterface interface {
	IssueToken(email string) (string, int64, error)
}
