package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"photoshoot-backend/internal/packages"
	"photoshoot-backend/internal/payments/yookassa"
	"photoshoot-backend/internal/realtime"
	"photoshoot-backend/internal/shared/telemetry"
)

var (
	ErrPaymentsDisabled = errors.New("payments are not configured")
	ErrPackageNotFound  = errors.New("package not found")
	ErrGateway          = errors.New("payment gateway error")
	ErrBadNotification  = errors.New("no payment object")
)

const (
	eventSucceeded  = "payment.succeeded"
	statusSucceeded = "succeeded"
)

// Gateway is the payment provider.
type Gateway interface {
	CreatePayment(ctx context.Context, req yookassa.CreateRequest, idempotenceKey string) (yookassa.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (yookassa.Payment, error)
}

type PackageLookup interface {
	Get(ctx context.Context, packageID string) (packages.Package, error)
}

// Notifier sends a text message to a user outside the web session.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
}

type Service struct {
	Repo     Repo
	Packages PackageLookup
	Gateway  Gateway
	Push     realtime.Pusher
	Notifier Notifier
	SiteURL  string
	// VerifyWebhooks re-reads the payment from the provider instead of
	// trusting the status in the notification body.
	VerifyWebhooks bool
}

// Create opens a pending order and a provider payment for it, returning the
// order and the URL the buyer is redirected to.
func (s *Service) Create(ctx context.Context, userID, packageID, returnURL string) (Order, string, error) {
	if s.Gateway == nil {
		return Order{}, "", ErrPaymentsDisabled
	}
	pkg, err := s.Packages.Get(ctx, packageID)
	if err != nil {
		if errors.Is(err, packages.ErrNotFound) {
			return Order{}, "", ErrPackageNotFound
		}
		return Order{}, "", err
	}

	order := Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		PackageID:   pkg.ID,
		Amount:      pkg.PriceRub,
		Photoshoots: pkg.PhotoshootsCount,
		Status:      StatusPending,
	}
	if err := s.Repo.Create(ctx, order); err != nil {
		return Order{}, "", fmt.Errorf("create order: %w", err)
	}

	if strings.TrimSpace(returnURL) == "" {
		returnURL = strings.TrimRight(s.SiteURL, "/") + "/payment/success"
	}
	payment, err := s.Gateway.CreatePayment(ctx, yookassa.CreateRequest{
		Amount:       yookassa.Amount{Value: fmt.Sprintf("%.2f", pkg.PriceRub), Currency: "RUB"},
		Confirmation: yookassa.Confirmation{Type: "redirect", ReturnURL: returnURL},
		Capture:      true,
		Description:  fmt.Sprintf("Пакет %s - %d фотосессий", pkg.Name, pkg.PhotoshootsCount),
		Metadata: map[string]string{
			"order_id":   order.ID,
			"user_id":    userID,
			"package_id": pkg.ID,
		},
	}, uuid.NewString())
	if err != nil {
		if markErr := s.Repo.SetFinalStatus(ctx, order.ID, StatusFailed); markErr != nil {
			telemetry.Error("payments.mark_failed_error", map[string]any{"order_id": order.ID, "error": markErr.Error()})
		}
		return Order{}, "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if err := s.Repo.SetInvoice(ctx, order.ID, payment.ID); err != nil {
		return Order{}, "", fmt.Errorf("store invoice: %w", err)
	}
	order.InvoiceID = payment.ID

	confirmationURL := ""
	if payment.Confirmation != nil {
		confirmationURL = payment.Confirmation.ConfirmationURL
	}
	telemetry.Info("payments.created", map[string]any{
		"request_id": telemetry.RequestIDFrom(ctx),
		"order_id":   order.ID,
		"invoice_id": payment.ID,
		"user_id":    userID,
		"amount":     order.Amount,
	})
	return order, confirmationURL, nil
}

// HandleNotification applies a provider webhook. Repeated notifications for
// an order that already left pending are accepted and ignored.
func (s *Service) HandleNotification(ctx context.Context, n Notification) error {
	if n.Object == nil || n.Object.ID == "" {
		return ErrBadNotification
	}
	order, err := s.Repo.GetByInvoice(ctx, n.Object.ID)
	if err != nil {
		return err
	}

	status := n.Object.Status
	if s.VerifyWebhooks && s.Gateway != nil {
		payment, err := s.Gateway.GetPayment(ctx, n.Object.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGateway, err)
		}
		status = payment.Status
	}

	switch {
	case status == statusSucceeded && n.Event == eventSucceeded:
		paid, err := s.Repo.MarkPaid(ctx, order.ID)
		if errors.Is(err, ErrNotPending) {
			telemetry.Info("payments.duplicate_notification", map[string]any{"order_id": order.ID, "status": order.Status})
			return nil
		}
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		telemetry.Info("payments.paid", map[string]any{
			"order_id":    paid.ID,
			"user_id":     paid.UserID,
			"photoshoots": paid.Photoshoots,
		})
		s.pushStatus(paid)
		s.notifyPaid(ctx, paid)
	case status == "canceled" || status == "cancelled":
		if err := s.Repo.SetFinalStatus(ctx, order.ID, StatusCancelled); err != nil && !errors.Is(err, ErrNotPending) {
			return fmt.Errorf("mark cancelled: %w", err)
		}
		order.Status = StatusCancelled
		s.pushStatus(order)
	}
	return nil
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]Order, error) {
	return s.Repo.ListByUser(ctx, userID)
}

func (s *Service) pushStatus(order Order) {
	if s.Push == nil {
		return
	}
	ev := realtime.PaymentEvent{
		Type:    realtime.TypePaymentUpdate,
		OrderID: order.ID,
		Status:  order.Status,
		Amount:  order.Amount,
	}
	if order.Status == StatusPaid {
		ev.Photoshoots = order.Photoshoots
	}
	s.Push.Push(order.UserID, ev)
}

func (s *Service) notifyPaid(ctx context.Context, order Order) {
	if s.Notifier == nil {
		return
	}
	name := ""
	if pkg, err := s.Packages.Get(ctx, order.PackageID); err == nil {
		name = pkg.Name
	}
	text := fmt.Sprintf("✅ <b>Оплата прошла успешно!</b>\n\nПакет: %s\nНачислено: %d фотосессий\nСумма: %.2f₽\n\n"+
		"Теперь вы можете генерировать фото как в боте, так и на сайте!", name, order.Photoshoots, order.Amount)
	if err := s.Notifier.Notify(ctx, order.UserID, text); err != nil {
		telemetry.Warn("payments.notify_failed", map[string]any{"order_id": order.ID, "error": err.Error()})
	}
}
