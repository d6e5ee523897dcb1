package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/appsync-api/internal/services"
	"github.com/golang-jwt/jwt/v5"
)

// TestSecret signs both session tokens and identity assertions in tests
const TestSecret = "test-secret-key-for-testing-only"

// TestSessionService creates a SessionService with test configuration
func TestSessionService() *services.SessionService {
	return services.NewSessionService(TestSecret, 24*time.Hour)
}

// GenerateTestToken generates a valid session token for testing
func GenerateTestToken(t *testing.T, email string) string {
	t.Helper()
	token, _, err := TestSessionService().IssueToken(email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// MakeAssertion signs an identity assertion the way the external identity
// provider would
func MakeAssertion(t *testing.T, email, audience string) string {
	t.Helper()
	return makeAssertion(t, TestSecret, email, audience)
}

// MakeBadAssertion signs an assertion with the wrong key, so signature
// validation fails
func MakeBadAssertion(t *testing.T, email, audience string) string {
	t.Helper()
	return makeAssertion(t, "not-the-real-secret", email, audience)
}

func makeAssertion(t *testing.T, secret, email, audience string) string {
	t.Helper()
	now := time.Now()
	claims := services.AssertionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "browserid.org",
			Subject:   email,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign assertion: %v", err)
	}
	return signed
}

// AuthHeader returns an Authorization header value with a Bearer token
func AuthHeader(token string) string {
	return "Bearer " + token
}

// HTTPTestClient provides helper methods for HTTP testing
type HTTPTestClient struct {
	t       *testing.T
	handler http.Handler
}

// NewHTTPTestClient creates a new HTTP test client
func NewHTTPTestClient(t *testing.T, handler http.Handler) *HTTPTestClient {
	return &HTTPTestClient{t: t, handler: handler}
}

// Request makes an HTTP request and returns the response
func (c *HTTPTestClient) Request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	c.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

// GET makes a GET request
func (c *HTTPTestClient) GET(path string, headers map[string]string) *httptest.ResponseRecorder {
	return c.Request(http.MethodGet, path, nil, headers)
}

// POST makes a POST request
func (c *HTTPTestClient) POST(path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	return c.Request(http.MethodPost, path, body, headers)
}

// ParseJSON parses the response body as JSON
func ParseJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}
}

// AssertStatus asserts the response status code
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rec.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rec.Code, rec.Body.String())
	}
}
