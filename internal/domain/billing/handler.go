package billing

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/visit"
	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/visits/:visit_id/charges/consultation", h.ChargeConsultation)
	api.POST("/visits/:visit_id/charges/tests", h.ChargeTests)
	api.POST("/visits/:visit_id/charges/prescriptions", h.ChargePrescriptions)
	api.POST("/visits/:visit_id/complete", h.CompleteVisit)
	api.GET("/visits/:visit_id/payments", h.VisitPayments)
	api.GET("/visits/:visit_id/invoices", h.VisitInvoices)

	cashier := api.Group("", auth.RequireRole("cashier"))
	cashier.POST("/payments/:payment_id/complete", h.CompletePayment)
	cashier.POST("/invoices/:invoice_id/pay", h.PayInvoice)
	cashier.POST("/visits/:visit_id/submit-to-insurance", h.SubmitToInsurance)
}

// mapError converts billing failures to HTTP errors. Duplicate charges get a
// structured 400 body carrying the aggregate and catalog item ids.
func mapError(err error) error {
	var dup *DuplicateChargeError
	switch {
	case errors.As(err, &dup):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"message":      "item already charged",
			"aggregate":    dup.Aggregate,
			"aggregate_id": dup.AggregateID,
			"item_id":      dup.CatalogItemID,
		})
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, visit.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "billing operation failed")
}

func visitParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("visit_id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid visit id")
	}
	return id, nil
}

func (h *Handler) ChargeConsultation(c echo.Context) error {
	visitID, err := visitParam(c)
	if err != nil {
		return err
	}
	result, err := h.svc.ChargeConsultation(c.Request().Context(), visitID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// batchChargeRequest optionally overrides the coverage drawn from the
// patient's policy for this one call.
type batchChargeRequest struct {
	InsuranceCoverage *decimal.Decimal `json:"insurance_coverage,omitempty"`
}

func (h *Handler) ChargeTests(c echo.Context) error {
	visitID, err := visitParam(c)
	if err != nil {
		return err
	}
	var req batchChargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := h.svc.ChargeTests(c.Request().Context(), visitID, req.InsuranceCoverage)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ChargePrescriptions(c echo.Context) error {
	visitID, err := visitParam(c)
	if err != nil {
		return err
	}
	var req batchChargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := h.svc.ChargePrescriptions(c.Request().Context(), visitID, req.InsuranceCoverage)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type completePaymentRequest struct {
	ItemIDs []uuid.UUID `json:"item_ids"`
}

func (h *Handler) CompletePayment(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("payment_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}
	var req completePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := h.svc.CompletePayment(c.Request().Context(), paymentID, req.ItemIDs)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) PayInvoice(c echo.Context) error {
	invoiceID, err := uuid.Parse(c.Param("invoice_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	inv, err := h.svc.PayInvoice(c.Request().Context(), invoiceID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) SubmitToInsurance(c echo.Context) error {
	visitID, err := visitParam(c)
	if err != nil {
		return err
	}
	result, err := h.svc.SubmitToInsurance(c.Request().Context(), visitID)
	if err != nil {
		return mapError(err)
	}
	for _, id := range result.InvoiceIDs {
		h.log.Info().
			Str("visit_id", visitID.String()).
			Str("invoice_id", id.String()).
			Str("user_id", auth.UserIDFromContext(c.Request().Context())).
			Msg("invoice submitted to insurance")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) CompleteVisit(c echo.Context) error {
	visitID, err := visitParam(c)
	if err != nil {
		return err
	}
	v, err := h.svc.CompleteVisit(c.Request().Context(), visitID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) VisitPayments(c echo.Context) error {
	visitID, err := visitParam(c)
	if err != nil {
		return err
	}
	payments, err := h.svc.VisitPayments(c.Request().Context(), visitID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *Handler) VisitInvoices(c echo.Context) error {
	visitID, err := visitParam(c)
	if err != nil {
		return err
	}
	invoices, err := h.svc.VisitInvoices(c.Request().Context(), visitID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, invoices)
}
