package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub-payments/internal/domain"
	"github.com/learnhub/learnhub-payments/internal/enrollment"
	"github.com/learnhub/learnhub-payments/internal/logging"
)

// FrontendURLs are the targets the browser is sent to after a gateway
// callback has been reconciled.
type FrontendURLs struct {
	Success string
	Fail    string
	Cancel  string
}

// Handler contains the HTTP handlers for the enrollment API.
type Handler struct {
	enrollments *enrollment.Service
	reconciler  *enrollment.Reconciler
	frontends   FrontendURLs
}

// NewHandler creates a new API handler.
func NewHandler(enrollments *enrollment.Service, reconciler *enrollment.Reconciler, frontends FrontendURLs) *Handler {
	return &Handler{
		enrollments: enrollments,
		reconciler:  reconciler,
		frontends:   frontends,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// EnrollResponse represents the response from the enroll endpoint.
type EnrollResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    *domain.Enrollment `json:"data"`
}

// Enroll handles POST /api/v1/enrollments/:courseId
// The student identity comes from the authenticated session, forwarded by
// the auth frontend in the X-Student-ID header.
func (h *Handler) Enroll(c *gin.Context) {
	courseID := c.Param("courseId")
	studentID := c.GetHeader("X-Student-ID")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "X-Student-ID header is required",
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	result, err := h.enrollments.Enroll(c.Request.Context(), courseID, studentID)
	if err != nil {
		enrollmentsTotal.WithLabelValues("error").Inc()
		handleServiceError(c, err)
		return
	}
	enrollmentsTotal.WithLabelValues("ok").Inc()

	c.JSON(http.StatusCreated, EnrollResponse{
		Success: true,
		Message: "Enrollment initiated, redirect to payment",
		Data:    result,
	})
}

// InitPaymentResponse represents the response from the payment retry endpoint.
type InitPaymentResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
}

// InitPayment handles POST /api/v1/payments/:orderId/init
// Re-opens a gateway session for an order whose payment is still unpaid.
func (h *Handler) InitPayment(c *gin.Context) {
	redirectURL, err := h.enrollments.InitPayment(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, InitPaymentResponse{
		Success:     true,
		RedirectURL: redirectURL,
	})
}

// Callback returns the handler for one of the three gateway callback routes.
// All three funnel into the same reconciler; only the outcome tag and the
// frontend redirect target differ.
func (h *Handler) Callback(outcome domain.Outcome) gin.HandlerFunc {
	frontend := map[domain.Outcome]string{
		domain.OutcomeSuccess: h.frontends.Success,
		domain.OutcomeFail:    h.frontends.Fail,
		domain.OutcomeCancel:  h.frontends.Cancel,
	}[outcome]

	return func(c *gin.Context) {
		transactionID := c.Query("transactionId")
		amount := c.Query("amount")
		status := c.Query("status")

		result, err := h.reconciler.Reconcile(c.Request.Context(), transactionID, outcome)
		if err != nil {
			reconciliationsTotal.WithLabelValues(string(outcome), "error").Inc()
			logging.From(c).Error("reconciliation failed",
				"transaction_id", transactionID, "outcome", string(outcome), "error", err)
			handleServiceError(c, err)
			return
		}
		reconciliationsTotal.WithLabelValues(string(outcome), "ok").Inc()

		q := url.Values{}
		q.Set("transactionId", transactionID)
		q.Set("message", result.Message)
		q.Set("amount", amount)
		q.Set("status", status)
		c.Redirect(http.StatusFound, fmt.Sprintf("%s?%s", frontend, q.Encode()))
	}
}

// ValidateRequest is the IPN/operator-triggered validation payload.
type ValidateRequest struct {
	ValID  string `json:"val_id" binding:"required"`
	TranID string `json:"tran_id" binding:"required"`
}

// Validate handles POST /payments/validate
// Fetches the gateway's authoritative transaction record and stores it
// against the payment for audit. No status change.
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "Invalid request body: " + err.Error(),
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	if err := h.reconciler.RecordValidation(c.Request.Context(), req.TranID, req.ValID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment validated successfully",
	})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "learnhub-payments",
	})
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(c *gin.Context, err error) {
	var enrollErr *domain.EnrollmentError
	if errors.As(err, &enrollErr) {
		statusCode := http.StatusInternalServerError

		switch {
		case errors.Is(enrollErr.Err, domain.ErrCourseNotFound),
			errors.Is(enrollErr.Err, domain.ErrStudentNotFound),
			errors.Is(enrollErr.Err, domain.ErrOrderNotFound),
			errors.Is(enrollErr.Err, domain.ErrPaymentNotFound):
			statusCode = http.StatusNotFound
		case errors.Is(enrollErr.Err, domain.ErrValidation):
			statusCode = http.StatusBadRequest
		case errors.Is(enrollErr.Err, domain.ErrStateConflict),
			errors.Is(enrollErr.Err, domain.ErrDuplicateRequest),
			errors.Is(enrollErr.Err, domain.ErrDuplicateTransaction):
			statusCode = http.StatusConflict
		case errors.Is(enrollErr.Err, domain.ErrGateway):
			// The adapter's own rejection: client-visible, upstream detail
			// stays in the logs.
			statusCode = http.StatusBadRequest
		}

		c.JSON(statusCode, ErrorResponse{
			Success: false,
			Error:   enrollErr.Message,
			Code:    enrollErr.Code,
		})
		return
	}

	logging.From(c).Error("unhandled service error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error:   "Internal server error",
		Code:    "INTERNAL_ERROR",
	})
}
