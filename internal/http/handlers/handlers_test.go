package handlers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.New(errs.KindUnauthorized, "no session"), fiber.StatusUnauthorized},
		{errs.New(errs.KindForbidden, "not creator"), fiber.StatusForbidden},
		{errs.New(errs.KindNotFound, "missing"), fiber.StatusNotFound},
		{errs.Validation(errs.FieldError{Field: "amount", Message: "too small"}), fiber.StatusBadRequest},
		{errs.New(errs.KindInvalidSignature, "bad"), fiber.StatusBadRequest},
		{errs.New(errs.KindWrongContractVersion, "v3"), fiber.StatusBadRequest},
		{errs.New(errs.KindTermsHashMismatch, "changed"), fiber.StatusConflict},
		{&errs.StaleDeliverable{Requested: 2, Required: 1}, fiber.StatusConflict},
		{errs.New(errs.KindStorageConflict, "dup"), fiber.StatusConflict},
		{errs.New(errs.KindBusy, "in flight"), fiber.StatusConflict},
		{errs.Wrap(errs.KindOnChainCallFailure, errors.New("rpc down"), "read failed"), fiber.StatusBadGateway},
		{fiber.ErrUpgradeRequired, fiber.StatusUpgradeRequired},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func errorApp(err error) *fiber.App {
	app := fiber.New()
	app.Use(middleware.RequestIDMiddleware())
	app.Get("/fail", func(c *fiber.Ctx) error {
		return respondError(c, zap.NewNop(), err)
	})
	return app
}

func decodeError(t *testing.T, app *fiber.App) (int, dto.ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest("GET", "/fail", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestRespondErrorCarriesFieldsAndRequestID(t *testing.T) {
	status, body := decodeError(t, errorApp(errs.Validation(
		errs.FieldError{Field: "terms.deliverables", Message: "percentages must sum to 100"},
		errs.FieldError{Field: "description", Message: "is required"},
	)))

	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "validation failed", body.Error)
	require.Len(t, body.Fields, 2)
	require.Equal(t, "terms.deliverables", body.Fields[0].Field)
	require.Equal(t, "req-42", body.RequestID)
}

func TestRespondErrorStaleDeliverableMessage(t *testing.T) {
	status, body := decodeError(t, errorApp(&errs.StaleDeliverable{Requested: 2, Required: 0}))

	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "Cannot fund deliverable 3. Deliverable 1 must be funded first.", body.Error)
}

func TestRespondErrorHidesInternalCause(t *testing.T) {
	status, body := decodeError(t, errorApp(errors.New("pq: connection refused")))

	require.Equal(t, fiber.StatusInternalServerError, status)
	require.Equal(t, "internal server error", body.Error)
}

func TestListTemplates(t *testing.T) {
	app := fiber.New()
	app.Get("/terms/templates", ListTemplates)

	resp, err := app.Test(httptest.NewRequest("GET", "/terms/templates", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		OK   bool `json:"ok"`
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.OK)
	require.Len(t, body.Data, 4)
	require.Equal(t, "web_dev", body.Data[0].ID)
}

func TestHandlersRejectMalformedIDs(t *testing.T) {
	log := zap.NewNop()
	app := fiber.New()
	app.Use(middleware.RequestIDMiddleware())
	app.Patch("/invoices/:id/milestones/:milestoneId", NewMilestoneHandler(nil, log).UpdateMilestone)
	app.Post("/invoices/:id/sign", NewSignatureHandler(nil, log).SignTerms)
	app.Get("/invoices/:id/escrow", NewEscrowHandler(nil, log).GetEscrow)

	tests := []struct {
		method, path, want string
	}{
		{"PATCH", "/invoices/nope/milestones/3f1c2e8a-1b7e-4f0a-9a51-2b8a3f9c0d11", "invalid invoice id"},
		{"PATCH", "/invoices/3f1c2e8a-1b7e-4f0a-9a51-2b8a3f9c0d11/milestones/nope", "invalid milestone id"},
		{"POST", "/invoices/42/sign", "invalid invoice id"},
		{"GET", "/invoices/abc/escrow", "invalid invoice id"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			var body dto.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, tt.want, body.Error)
		})
	}
}

func TestUpdateMilestoneRejectsNonStringProof(t *testing.T) {
	app := fiber.New()
	app.Patch("/invoices/:id/milestones/:milestoneId", NewMilestoneHandler(nil, zap.NewNop()).UpdateMilestone)

	req := httptest.NewRequest("PATCH",
		"/invoices/3f1c2e8a-1b7e-4f0a-9a51-2b8a3f9c0d11/milestones/7d0a6c4e-5b1f-4c2d-8e3a-9f6b1a2c3d4e",
		strings.NewReader(`{"proof_url": 12}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
