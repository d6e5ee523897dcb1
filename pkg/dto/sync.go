package dto

import "github.com/dimitrije/appsync-api/internal/models"

type CollectionResponse struct {
	Since        int64              `json:"since"`
	Until        int64              `json:"until"`
	Applications []models.AppRecord `json:"applications"`
	UUID         string             `json:"uuid,omitempty"`
}

// CollectionDeletedResponse is the complete body for a tombstoned
// collection: collection_deleted must be the only key.
type CollectionDeletedResponse struct {
	CollectionDeleted bool `json:"collection_deleted"`
}

type WriteResponse struct {
	Received int64  `json:"received"`
	UUID     string `json:"uuid"`
}
