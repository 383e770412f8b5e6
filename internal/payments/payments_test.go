package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoshoot-backend/internal/credits"
	"photoshoot-backend/internal/packages"
	"photoshoot-backend/internal/payments/yookassa"
	"photoshoot-backend/internal/shared/config"
)

type fakeGateway struct {
	mu        sync.Mutex
	requests  []yookassa.CreateRequest
	keys      []string
	createErr error
	status    string
}

func (g *fakeGateway) CreatePayment(ctx context.Context, req yookassa.CreateRequest, key string) (yookassa.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return yookassa.Payment{}, g.createErr
	}
	g.requests = append(g.requests, req)
	g.keys = append(g.keys, key)
	return yookassa.Payment{
		ID:           "pay-" + req.Metadata["order_id"],
		Status:       "pending",
		Confirmation: &yookassa.Confirmation{Type: "redirect", ConfirmationURL: "https://pay.test/confirm"},
	}, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, id string) (yookassa.Payment, error) {
	return yookassa.Payment{ID: id, Status: g.status}, nil
}

type capturePusher struct {
	mu     sync.Mutex
	events []any
}

func (p *capturePusher) Push(userID string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload)
}

type captureNotifier struct {
	texts []string
}

func (n *captureNotifier) Notify(ctx context.Context, userID, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

type fixture struct {
	ledger   *credits.MemoryLedger
	gateway  *fakeGateway
	push     *capturePusher
	notifier *captureNotifier
	svc      *Service
	pkg      packages.Package
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pkgSvc := packages.NewService(packages.NewMemoryRepo())
	require.NoError(t, pkgSvc.Seed(t.Context(), []config.PackageConfig{{Name: "Бизнес", Photoshoots: 10, PriceRub: 799}}))
	items, err := pkgSvc.List(t.Context())
	require.NoError(t, err)

	ledger := credits.NewMemoryLedger()
	ledger.Open("user-1", 0)
	f := &fixture{
		ledger:   ledger,
		gateway:  &fakeGateway{},
		push:     &capturePusher{},
		notifier: &captureNotifier{},
		pkg:      items[0],
	}
	f.svc = &Service{
		Repo:     NewMemoryRepo(ledger),
		Packages: pkgSvc,
		Gateway:  f.gateway,
		Push:     f.push,
		Notifier: f.notifier,
		SiteURL:  "https://site.test/",
	}
	return f
}

func succeeded(invoiceID string) Notification {
	var n Notification
	_ = json.Unmarshal([]byte(`{"event":"payment.succeeded","object":{"id":"`+invoiceID+`","status":"succeeded"}}`), &n)
	return n
}

func TestCreateBuildsProviderRequest(t *testing.T) {
	f := newFixture(t)

	order, url, err := f.svc.Create(t.Context(), "user-1", f.pkg.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/confirm", url)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 799.0, order.Amount)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, yookassa.Amount{Value: "799.00", Currency: "RUB"}, req.Amount)
	assert.Equal(t, "https://site.test/payment/success", req.Confirmation.ReturnURL)
	assert.True(t, req.Capture)
	assert.Equal(t, order.ID, req.Metadata["order_id"])
	assert.Equal(t, "user-1", req.Metadata["user_id"])
	assert.NotEmpty(t, f.gateway.keys[0])
}

func TestCreateUnknownPackage(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Create(t.Context(), "user-1", "nope", "")
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestCreateGatewayFailureMarksOrderFailed(t *testing.T) {
	f := newFixture(t)
	f.gateway.createErr = errors.New("connection reset")

	_, _, err := f.svc.Create(t.Context(), "user-1", f.pkg.ID, "")
	require.ErrorIs(t, err, ErrGateway)

	orders, err := f.svc.ListMine(t.Context(), "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, StatusFailed, orders[0].Status)
}

func TestSucceededNotificationCreditsOnce(t *testing.T) {
	f := newFixture(t)
	order, _, err := f.svc.Create(t.Context(), "user-1", f.pkg.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleNotification(t.Context(), succeeded("pay-"+order.ID)))
	require.NoError(t, f.svc.HandleNotification(t.Context(), succeeded("pay-"+order.ID)))

	acc, _ := f.ledger.Get("user-1")
	assert.Equal(t, 10, acc.ImagesRemaining)

	orders, err := f.svc.ListMine(t.Context(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, orders[0].Status)
	assert.NotNil(t, orders[0].PaidAt)

	require.Len(t, f.push.events, 1)
	assert.Len(t, f.notifier.texts, 1)
	assert.Contains(t, f.notifier.texts[0], "Бизнес")
}

func TestVerifiedNotificationUsesProviderStatus(t *testing.T) {
	f := newFixture(t)
	f.svc.VerifyWebhooks = true
	f.gateway.status = "pending"
	order, _, err := f.svc.Create(t.Context(), "user-1", f.pkg.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleNotification(t.Context(), succeeded("pay-"+order.ID)))

	acc, _ := f.ledger.Get("user-1")
	assert.Equal(t, 0, acc.ImagesRemaining)
}

func TestCancelledNotification(t *testing.T) {
	f := newFixture(t)
	order, _, err := f.svc.Create(t.Context(), "user-1", f.pkg.ID, "")
	require.NoError(t, err)

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"event":"payment.canceled","object":{"id":"pay-`+order.ID+`","status":"canceled"}}`), &n))
	require.NoError(t, f.svc.HandleNotification(t.Context(), n))

	orders, err := f.svc.ListMine(t.Context(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, orders[0].Status)

	require.NoError(t, f.svc.HandleNotification(t.Context(), succeeded("pay-"+order.ID)))
	acc, _ := f.ledger.Get("user-1")
	assert.Equal(t, 0, acc.ImagesRemaining)
}

func TestWebhookEndpointStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	NewHandler(f.svc).RegisterWebhook(r.Group("/payments"))

	send := func(body string) map[string]any {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var out map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		return out
	}

	assert.Equal(t, map[string]any{"status": "error", "message": "No payment object"}, send(`{"event":"payment.succeeded"}`))
	assert.Equal(t, map[string]any{"status": "error", "message": "Order not found"}, send(`{"event":"payment.succeeded","object":{"id":"x","status":"succeeded"}}`))

	order, _, err := f.svc.Create(t.Context(), "user-1", f.pkg.ID, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "ok"}, send(`{"event":"payment.succeeded","object":{"id":"pay-`+order.ID+`","status":"succeeded"}}`))
}

func TestCreateEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/payments", func(c *gin.Context) { c.Set("userId", "user-1"); c.Next() }))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/create", bytes.NewBufferString(`{"package_id":"`+f.pkg.ID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "https://pay.test/confirm", out["payment_url"])
	assert.NotEmpty(t, out["order_id"])
}

func TestPGRepoMarkPaidTopsUpInTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"id", "user_id", "package_id", "invoice_id", "amount", "photoshoots_count", "status", "created_at", "paid_at"}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("o.status = 'pending'")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("order-1", "user-1", "pkg-1", "pay-1", 799.0, 10, StatusPaid, now, now))
	mock.ExpectExec(regexp.QuoteMeta("images_remaining = images_remaining + $2")).
		WithArgs("user-1", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := (&PGRepo{DB: db}).MarkPaid(t.Context(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, 10, order.Photoshoots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoMarkPaidNotPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders o")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err = (&PGRepo{DB: db}).MarkPaid(t.Context(), "order-1")
	assert.ErrorIs(t, err, ErrNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}
