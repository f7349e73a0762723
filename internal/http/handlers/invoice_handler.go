package handlers

import (
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/middleware"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/arc-invoice/backend/internal/terms"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	invoiceService *services.InvoiceService
	log            *zap.Logger
}

func NewInvoiceHandler(invoiceService *services.InvoiceService, log *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, log: log}
}

func (h *InvoiceHandler) CreateInvoice(c *fiber.Ctx) error {
	var req services.CreateInvoiceInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	inv, err := h.invoiceService.Create(c.UserContext(), middleware.GetWallet(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.NewInvoiceResponse(inv)})
}

func (h *InvoiceHandler) ListInvoices(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	invs, err := h.invoiceService.List(c.UserContext(), middleware.GetWallet(c), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewInvoiceList(invs)})
}

func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}

	details, err := h.invoiceService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewInvoiceDetailsResponse(details)})
}

func (h *InvoiceHandler) GetTerms(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}

	view, err := h.invoiceService.Terms(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: view})
}

func (h *InvoiceHandler) GetAuditTrail(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}

	entries, err := h.invoiceService.AuditTrail(c.UserContext(), middleware.GetWallet(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

// ListTemplates serves the built-in terms templates.
func ListTemplates(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: terms.Templates()})
}
