package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/appsync-api/internal/cache"
	"github.com/dimitrije/appsync-api/internal/middleware"
	"github.com/dimitrije/appsync-api/internal/models"
	"github.com/dimitrije/appsync-api/internal/storage"
	"github.com/dimitrije/appsync-api/pkg/dto"
	"github.com/dimitrije/appsync-api/tests/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupSyncTest(t *testing.T, pollCache cache.Cache) (*testutil.MockStorage, http.Handler) {
	t.Helper()
	mockStorage := new(testutil.MockStorage)
	handler := NewSyncHandler(mockStorage, pollCache, 120)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Get("/__heartbeat__", handler.Heartbeat)

	authed := app.Group("/collections")
	authed.Use(middleware.Auth(testutil.TestSessionService()))
	authed.Get("/:user/:collection", handler.GetCollection)
	authed.Post("/:user/:collection", handler.PostCollection)

	return mockStorage, app
}

func syncRequest(t *testing.T, app http.Handler, method, path string, body interface{}, email string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader *bytes.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(jsonBody)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if email != "" {
		req.Header.Set("Authorization", testutil.AuthHeader(testutil.GenerateTestToken(t, email)))
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func TestSyncHandler_GetCollection_Success(t *testing.T) {
	pollCache := testutil.NewFakeCache()
	require.NoError(t, pollCache.Set(PollHeader, []byte("120"), 0))
	mockStorage, app := setupSyncTest(t, pollCache)

	collectionUUID := uuid.New()
	apps := testutil.AppFixtures(2)
	mockStorage.On("ReadSince", mock.Anything, "t@m.com", "apps", int64(0)).Return(&models.CollectionPage{
		UUID:  collectionUUID,
		Since: 0,
		Until: 1700000000000,
		Apps:  apps,
	}, nil)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps", nil, "t@m.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "120", rec.Header().Get(PollHeader))

	var response dto.CollectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, int64(0), response.Since)
	assert.Equal(t, int64(1700000000000), response.Until)
	assert.Equal(t, collectionUUID.String(), response.UUID)
	assert.Len(t, response.Applications, 2)
	assert.Equal(t, apps[0].Origin, response.Applications[0].Origin)

	mockStorage.AssertExpectations(t)
}

func TestSyncHandler_GetCollection_SinceParameter(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("ReadSince", mock.Anything, "t@m.com", "apps", int64(1699999999999)).Return(&models.CollectionPage{
		UUID:  uuid.New(),
		Since: 1699999999999,
		Until: 1700000000000,
		Apps:  []models.AppRecord{},
	}, nil)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps?since=1699999999999", nil, "t@m.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	mockStorage.AssertExpectations(t)
}

func TestSyncHandler_GetCollection_NeverCreated(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("ReadSince", mock.Anything, "t@m.com", "apps", int64(0)).Return(&models.CollectionPage{
		UUID:  uuid.Nil,
		Since: 0,
		Until: 1700000000000,
	}, nil)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps", nil, "t@m.com")

	assert.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "uuid")
	assert.JSONEq(t, "[]", string(raw["applications"]))
}

func TestSyncHandler_GetCollection_InvalidSince(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps?since=abc", nil, "t@m.com")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid since parameter")
	mockStorage.AssertNotCalled(t, "ReadSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncHandler_GetCollection_NegativeSince(t *testing.T) {
	_, app := setupSyncTest(t, nil)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps?since=-5", nil, "t@m.com")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncHandler_GetCollection_Tombstone(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("ReadSince", mock.Anything, "t@m.com", "apps", int64(0)).Return(nil, storage.ErrCollectionDeleted)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps", nil, "t@m.com")

	assert.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, map[string]interface{}{"collection_deleted": true}, raw)
}

func TestSyncHandler_GetCollection_Unauthenticated(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps", nil, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	mockStorage.AssertNotCalled(t, "ReadSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncHandler_GetCollection_UserMismatch(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps", nil, "other@m.com")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token does not match collection owner")
	mockStorage.AssertNotCalled(t, "ReadSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncHandler_GetCollection_StorageDown(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("ReadSince", mock.Anything, "t@m.com", "apps", int64(0)).Return(nil, storage.ErrStorageUnavailable)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps", nil, "t@m.com")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("Retry-After"))
}

func TestSyncHandler_GetCollection_CacheDownDoesNotFailRequest(t *testing.T) {
	mockStorage, app := setupSyncTest(t, testutil.DownCache{})

	mockStorage.On("ReadSince", mock.Anything, "t@m.com", "apps", int64(0)).Return(&models.CollectionPage{
		UUID:  uuid.New(),
		Until: 1700000000000,
		Apps:  []models.AppRecord{},
	}, nil)

	rec := syncRequest(t, app, http.MethodGet, "/collections/t@m.com/apps", nil, "t@m.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(PollHeader))
}

func TestSyncHandler_PostCollection_Success(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	collectionUUID := uuid.New()
	apps := testutil.AppFixtures(2)
	mockStorage.On("Write", mock.Anything, "t@m.com", "apps", mock.Anything, (*int64)(nil)).Return(&models.WriteResult{
		UUID:  collectionUUID,
		Until: 1700000000000,
	}, nil)

	rec := syncRequest(t, app, http.MethodPost, "/collections/t@m.com/apps", apps, "t@m.com")

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.WriteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, int64(1700000000000), response.Received)
	assert.Equal(t, collectionUUID.String(), response.UUID)

	mockStorage.AssertExpectations(t)
}

func TestSyncHandler_PostCollection_LastGetPassedThrough(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("Write", mock.Anything, "t@m.com", "apps", mock.Anything, mock.MatchedBy(func(lastGet *int64) bool {
		return lastGet != nil && *lastGet == 1699999999999
	})).Return(&models.WriteResult{UUID: uuid.New(), Until: 1700000000000}, nil)

	rec := syncRequest(t, app, http.MethodPost, "/collections/t@m.com/apps?lastget=1699999999999", testutil.AppFixtures(1), "t@m.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	mockStorage.AssertExpectations(t)
}

func TestSyncHandler_PostCollection_PreconditionFailed(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("Write", mock.Anything, "t@m.com", "apps", mock.Anything, mock.Anything).Return(nil, storage.ErrPreconditionFailed)

	rec := syncRequest(t, app, http.MethodPost, "/collections/t@m.com/apps?lastget=5", testutil.AppFixtures(1), "t@m.com")

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestSyncHandler_PostCollection_MissingOrigin(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	apps := []models.AppRecord{{ManifestPath: "/manifest.webapp"}}
	rec := syncRequest(t, app, http.MethodPost, "/collections/t@m.com/apps", apps, "t@m.com")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing origin")
	mockStorage.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncHandler_PostCollection_InvalidBody(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	rec := syncRequest(t, app, http.MethodPost, "/collections/t@m.com/apps", map[string]string{"not": "a list"}, "t@m.com")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockStorage.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncHandler_PostCollection_InvalidLastGet(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	rec := syncRequest(t, app, http.MethodPost, "/collections/t@m.com/apps?lastget=abc", testutil.AppFixtures(1), "t@m.com")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid lastget parameter")
	mockStorage.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncHandler_PostCollection_StorageDown(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("Write", mock.Anything, "t@m.com", "apps", mock.Anything, mock.Anything).Return(nil, storage.ErrStorageUnavailable)

	rec := syncRequest(t, app, http.MethodPost, "/collections/t@m.com/apps", testutil.AppFixtures(1), "t@m.com")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("Retry-After"))
}

func TestSyncHandler_DeleteCollection(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	deleteReq := models.DeleteRequest{ClientID: "device-1", Reason: "user wiped data"}
	mockStorage.On("Delete", mock.Anything, "t@m.com", "apps", deleteReq).Return(nil)

	rec := syncRequest(t, app, http.MethodPost, "/collections/t@m.com/apps?delete", deleteReq, "t@m.com")

	assert.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, map[string]interface{}{"collection_deleted": true}, raw)

	mockStorage.AssertExpectations(t)
}

func TestSyncHandler_DeleteCollection_StorageDown(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("Delete", mock.Anything, "t@m.com", "apps", mock.Anything).Return(storage.ErrStorageUnavailable)

	rec := syncRequest(t, app, http.MethodPost, "/collections/t@m.com/apps?delete", models.DeleteRequest{ClientID: "device-1"}, "t@m.com")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("Retry-After"))
}

func TestSyncHandler_Heartbeat_OK(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("HealthCheck", mock.Anything).Return(nil)

	rec := syncRequest(t, app, http.MethodGet, "/__heartbeat__", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSyncHandler_Heartbeat_StorageDown(t *testing.T) {
	mockStorage, app := setupSyncTest(t, nil)

	mockStorage.On("HealthCheck", mock.Anything).Return(storage.ErrStorageUnavailable)

	rec := syncRequest(t, app, http.MethodGet, "/__heartbeat__", nil, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("Retry-After"))
}
