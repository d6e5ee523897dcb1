package handlers

import (
	"context"
	"strconv"

	"github.com/dimitrije/appsync-api/internal/config"
	"github.com/dimitrije/appsync-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type AuthHandler struct {
	cfg            *config.Config
	verifier       VerifierInterface
	sessionService SessionServiceInterface
	storage        StorageInterface
}

func NewAuthHandler(
	cfg *config.Config,
	verifier VerifierInterface,
	sessionService SessionServiceInterface,
	storage StorageInterface,
) *AuthHandler {
	return &AuthHandler{
		cfg:            cfg,
		verifier:       verifier,
		sessionService: sessionService,
		storage:        storage,
	}
}

func (h *AuthHandler) Verify(c *drift.Context) {
	var req dto.VerifyRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Assertion == "" {
		c.BadRequest("assertion is required")
		return
	}
	if req.Audience == "" {
		c.BadRequest("audience is required")
		return
	}
	if h.cfg.Audience != "" && req.Audience != h.cfg.Audience {
		c.Unauthorized("audience not recognized")
		return
	}

	ctx := context.Background()

	if err := h.storage.HealthCheck(ctx); err != nil {
		serviceUnavailable(c, h.cfg.RetryAfter)
		return
	}

	identity, err := h.verifier.Verify(ctx, req.Assertion, req.Audience)
	if err != nil {
		c.Unauthorized("invalid assertion")
		return
	}

	token, validUntil, err := h.sessionService.IssueToken(identity.Email)
	if err != nil {
		c.InternalServerError("failed to issue session token")
		return
	}
	if identity.ValidUntil != 0 {
		validUntil = identity.ValidUntil
	}

	_ = c.JSON(200, dto.VerifyResponse{
		Status:            "okay",
		Audience:          identity.Audience,
		Email:             identity.Email,
		ValidUntil:        validUntil,
		Issuer:            identity.Issuer,
		HTTPAuthorization: "Bearer " + token,
	})
}

func serviceUnavailable(c *drift.Context, retryAfter int) {
	c.Response.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	_ = c.JSON(503, map[string]string{"error": "service unavailable"})
}
