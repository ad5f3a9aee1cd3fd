// Package enrollment implements the core business logic for paid course
// enrollment: opening an order/payment pair against the gateway and
// reconciling gateway callbacks back into durable state.
// This is the service/use-case layer in Clean Architecture.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/learnhub-payments/internal/domain"
	"github.com/learnhub/learnhub-payments/internal/logging"
)

// PayerDefaults are the fallback contact fields sent to the gateway when a
// student record is missing one.
type PayerDefaults struct {
	Address string
	Phone   string
}

// Service implements the enrollment orchestrator.
// It creates the order/payment pair before contacting the gateway, so a
// gateway failure always leaves a traceable PENDING/UNPAID pair behind.
type Service struct {
	catalog  domain.CourseCatalog
	students domain.StudentDirectory
	ledger   domain.LedgerWriter
	orders   domain.OrderRepository
	payments domain.PaymentRepository
	gateway  domain.PaymentGateway
	idem     domain.IdempotencyStore
	defaults PayerDefaults
	log      *slog.Logger
}

// NewService creates a new enrollment service with the required dependencies.
func NewService(
	catalog domain.CourseCatalog,
	students domain.StudentDirectory,
	ledger domain.LedgerWriter,
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	gateway domain.PaymentGateway,
	idem domain.IdempotencyStore,
	defaults PayerDefaults,
) *Service {
	return &Service{
		catalog:  catalog,
		students: students,
		ledger:   ledger,
		orders:   orders,
		payments: payments,
		gateway:  gateway,
		idem:     idem,
		defaults: defaults,
		log:      logging.New("enrollment"),
	}
}

// Enroll handles the enroll-in-course flow:
// 1. Resolves the course and the student
// 2. Creates a PENDING order and an UNPAID payment in one operation
// 3. Opens a payment session with the gateway
// 4. Returns the redirect URL for the browser to follow
func (s *Service) Enroll(ctx context.Context, courseID, studentID string) (*domain.Enrollment, error) {
	if courseID == "" || studentID == "" {
		return nil, domain.NewEnrollmentError(domain.ErrValidation,
			"courseId and studentId are required",
			"VALIDATION_ERROR")
	}

	// Guard against double submission (double click, browser resubmit).
	// The lock is TTL-bounded, so an abandoned attempt frees up on its own.
	ok, err := s.idem.TryLock(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("idempotency lock: %w", err)
	}
	if !ok {
		return nil, domain.NewEnrollmentError(domain.ErrDuplicateRequest,
			"an enrollment attempt for this course is already in progress",
			"DUPLICATE_REQUEST")
	}

	// Step 1: Resolve the course. The price is copied onto the payment so a
	// later price change cannot drift this attempt.
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return nil, domain.NewEnrollmentError(err,
				fmt.Sprintf("course '%s' not found", courseID),
				"COURSE_NOT_FOUND")
		}
		return nil, domain.NewEnrollmentError(domain.ErrCoreAPI,
			"failed to fetch course", "CORE_API_ERROR")
	}

	// Step 2: Resolve the student's contact fields for the gateway.
	student, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, domain.ErrStudentNotFound) {
			return nil, domain.NewEnrollmentError(err,
				fmt.Sprintf("student '%s' not found", studentID),
				"STUDENT_NOT_FOUND")
		}
		return nil, domain.NewEnrollmentError(domain.ErrCoreAPI,
			"failed to fetch student", "CORE_API_ERROR")
	}

	// Step 3: Persist the pair before contacting the gateway.
	now := time.Now().UTC()
	order := &domain.Order{
		ID:        uuid.NewString(),
		CourseID:  course.ID,
		StudentID: student.ID,
		Status:    domain.OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	payment := &domain.Payment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		TransactionID: NewTransactionID(),
		Amount:        course.Price,
		Status:        domain.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.ledger.CreatePair(ctx, order, payment); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			return nil, domain.NewEnrollmentError(err,
				"transaction identifier collision", "DUPLICATE_TRANSACTION")
		}
		return nil, fmt.Errorf("create order/payment pair: %w", err)
	}
	_ = s.idem.Remember(ctx, studentID, courseID, order.ID)

	// Step 4: Open the gateway session. On failure the pair stays
	// PENDING/UNPAID for inspection; partial failure is surfaced, not hidden.
	redirectURL, err := s.gateway.InitSession(ctx, s.payerFor(student), payment.Amount, payment.TransactionID)
	if err != nil {
		s.log.Error("gateway session init failed, pair left pending",
			"order_id", order.ID, "transaction_id", payment.TransactionID, "error", err)
		return nil, domain.NewEnrollmentError(domain.ErrGateway,
			"failed to initiate payment session", "GATEWAY_ERROR")
	}

	s.log.Info("enrollment initiated",
		"order_id", order.ID, "course_id", course.ID, "student_id", student.ID,
		"transaction_id", payment.TransactionID, "amount", payment.Amount)

	return &domain.Enrollment{
		RedirectURL: redirectURL,
		Order:       order,
		Payment:     payment,
	}, nil
}

// InitPayment re-opens a gateway session for an existing order whose payment
// is still UNPAID. This is the retry entry point for a student who abandoned
// the gateway page; the original transaction identifier is reused.
func (s *Service) InitPayment(ctx context.Context, orderID string) (string, error) {
	if orderID == "" {
		return "", domain.NewEnrollmentError(domain.ErrValidation,
			"orderId is required", "VALIDATION_ERROR")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return "", domain.NewEnrollmentError(err,
				fmt.Sprintf("order '%s' not found", orderID), "ORDER_NOT_FOUND")
		}
		return "", fmt.Errorf("load order: %w", err)
	}

	payment, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return "", domain.NewEnrollmentError(err,
				"payment record not found for this order", "PAYMENT_NOT_FOUND")
		}
		return "", fmt.Errorf("load payment: %w", err)
	}
	if payment.Status.Terminal() {
		return "", domain.NewEnrollmentError(domain.ErrStateConflict,
			fmt.Sprintf("payment already %s", payment.Status), "STATE_CONFLICT")
	}

	student, err := s.students.GetStudent(ctx, order.StudentID)
	if err != nil {
		if errors.Is(err, domain.ErrStudentNotFound) {
			return "", domain.NewEnrollmentError(err, "student not found", "STUDENT_NOT_FOUND")
		}
		return "", domain.NewEnrollmentError(domain.ErrCoreAPI,
			"failed to fetch student", "CORE_API_ERROR")
	}

	redirectURL, err := s.gateway.InitSession(ctx, s.payerFor(student), payment.Amount, payment.TransactionID)
	if err != nil {
		return "", domain.NewEnrollmentError(domain.ErrGateway,
			"failed to initiate payment session", "GATEWAY_ERROR")
	}

	s.log.Info("payment session re-initiated",
		"order_id", order.ID, "transaction_id", payment.TransactionID)
	return redirectURL, nil
}

func (s *Service) payerFor(student *domain.Student) domain.PayerInfo {
	payer := domain.PayerInfo{
		Name:    student.Name,
		Email:   student.Email,
		Phone:   student.Phone,
		Address: student.Address,
	}
	if payer.Address == "" {
		payer.Address = s.defaults.Address
	}
	if payer.Phone == "" {
		payer.Phone = s.defaults.Phone
	}
	return payer
}
