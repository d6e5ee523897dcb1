package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/dimitrije/appsync-api/internal/cache"
	"github.com/dimitrije/appsync-api/internal/middleware"
	"github.com/dimitrije/appsync-api/internal/models"
	"github.com/dimitrije/appsync-api/internal/storage"
	"github.com/dimitrije/appsync-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

// PollHeader is the advisory response header telling clients how often to
// poll. Its value is read from the cache under the same key.
const PollHeader = "X-Sync-Poll"

type SyncHandler struct {
	storage    StorageInterface
	cache      cache.Cache
	retryAfter int
}

func NewSyncHandler(storage StorageInterface, pollCache cache.Cache, retryAfter int) *SyncHandler {
	return &SyncHandler{
		storage:    storage,
		cache:      pollCache,
		retryAfter: retryAfter,
	}
}

func (h *SyncHandler) GetCollection(c *drift.Context) {
	user, collection, ok := h.collectionParams(c)
	if !ok {
		return
	}

	since := int64(0)
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.BadRequest("invalid since parameter")
			return
		}
		since = parsed
	}

	page, err := h.storage.ReadSince(context.Background(), user, collection, since)
	if err != nil {
		if errors.Is(err, storage.ErrCollectionDeleted) {
			_ = c.JSON(200, dto.CollectionDeletedResponse{CollectionDeleted: true})
			return
		}
		serviceUnavailable(c, h.retryAfter)
		return
	}

	h.setPollHeader(c)

	resp := dto.CollectionResponse{
		Since:        page.Since,
		Until:        page.Until,
		Applications: page.Apps,
	}
	if resp.Applications == nil {
		resp.Applications = []models.AppRecord{}
	}
	if page.UUID != uuid.Nil {
		resp.UUID = page.UUID.String()
	}

	_ = c.JSON(200, resp)
}

func (h *SyncHandler) PostCollection(c *drift.Context) {
	user, collection, ok := h.collectionParams(c)
	if !ok {
		return
	}

	if c.Request.URL.Query().Has("delete") {
		h.deleteCollection(c, user, collection)
		return
	}

	var apps []models.AppRecord
	if err := c.BindJSON(&apps); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	for _, app := range apps {
		if app.Origin == "" {
			c.BadRequest("app record is missing origin")
			return
		}
	}

	var lastGet *int64
	if raw := c.QueryParam("lastget"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.BadRequest("invalid lastget parameter")
			return
		}
		lastGet = &parsed
	}

	result, err := h.storage.Write(context.Background(), user, collection, apps, lastGet)
	if err != nil {
		if errors.Is(err, storage.ErrPreconditionFailed) {
			_ = c.JSON(412, map[string]string{"error": "collection modified since last get"})
			return
		}
		serviceUnavailable(c, h.retryAfter)
		return
	}

	_ = c.JSON(200, dto.WriteResponse{
		Received: result.Until,
		UUID:     result.UUID.String(),
	})
}

func (h *SyncHandler) deleteCollection(c *drift.Context, user, collection string) {
	var req models.DeleteRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if err := h.storage.Delete(context.Background(), user, collection, req); err != nil {
		serviceUnavailable(c, h.retryAfter)
		return
	}

	_ = c.JSON(200, dto.CollectionDeletedResponse{CollectionDeleted: true})
}

func (h *SyncHandler) Heartbeat(c *drift.Context) {
	if err := h.storage.HealthCheck(context.Background()); err != nil {
		serviceUnavailable(c, h.retryAfter)
		return
	}
	c.Response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.Response.WriteHeader(200)
	_, _ = c.Response.Write([]byte("OK"))
}

// collectionParams resolves the path identity and checks it against the
// session token's email.
func (h *SyncHandler) collectionParams(c *drift.Context) (user, collection string, ok bool) {
	email := middleware.GetUserEmail(c)
	if email == "" {
		c.Unauthorized("not authenticated")
		return "", "", false
	}

	user = c.Param("user")
	collection = c.Param("collection")
	if user == "" || collection == "" {
		c.BadRequest("missing user or collection")
		return "", "", false
	}
	if user != email {
		c.Unauthorized("token does not match collection owner")
		return "", "", false
	}
	return user, collection, true
}

// setPollHeader decorates the response with the poll advisory, if one is
// cached. Cache failures never affect the response.
func (h *SyncHandler) setPollHeader(c *drift.Context) {
	if h.cache == nil {
		return
	}
	value, err := h.cache.Get(PollHeader)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("poll advisory cache unavailable: %v", err)
		}
		return
	}
	c.Response.Header().Set(PollHeader, string(value))
}
