package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/events"
	"github.com/noah-isme/checkout-pricing/internal/pricing"
	"github.com/noah-isme/checkout-pricing/internal/promo"
)

var fixedNow = time.Date(2025, 9, 15, 20, 40, 38, 0, time.UTC)

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	products, err := catalog.NewService(catalog.DemoProducts())
	require.NoError(t, err)
	window := promo.Window{Duration: promo.DefaultDuration}
	svc, err := NewService(ServiceConfig{
		Store:   store,
		Pricing: pricing.NewService(pricing.ServiceConfig{}),
		Catalog: products,
		Promo:   &window,
		Clock:   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc
}

func TestPlacePix(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)

	o, err := svc.Place(context.Background(), Input{
		Email:         " Buyer@Example.com ",
		CPF:           "078.228.164-89",
		PaymentMethod: "pix",
		Installments:  1,
	})
	require.NoError(t, err)
	assert.True(t, ValidID(o.ID))
	assert.Equal(t, "curso-marketing-digital", o.ProductID)
	assert.Equal(t, "buyer@example.com", o.Email)
	assert.Equal(t, "07822816489", o.CPF)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, fixedNow, o.CreatedAt)
	require.NotNil(t, o.Pricing)
	assert.Equal(t, "297", o.Pricing.Total.String())

	stored, err := store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
}

func TestPlaceNormalizesPaymentMethod(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	o, err := svc.Place(context.Background(), Input{
		Email:         "buyer@example.com",
		CPF:           "52998224725",
		PaymentMethod: " Card ",
		Installments:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, pricing.MethodCard, o.PaymentMethod)
	assert.Equal(t, "323.7", o.Pricing.Total.String())
}

func TestPlaceCardInstallments(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	o, err := svc.Place(context.Background(), Input{
		ProductID:     "curso-marketing-digital",
		Email:         "buyer@example.com",
		CPF:           "52998224725",
		PaymentMethod: "card",
		Installments:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, pricing.MethodCard, o.PaymentMethod)
	assert.Equal(t, "323.7", o.Pricing.Total.String())
	assert.Equal(t, "107.9", o.Pricing.MonthlyValue.String())
}

func TestPlaceRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	_, err := svc.Place(context.Background(), Input{
		Email:         "not-an-email",
		CPF:           "11111111111",
		PaymentMethod: "boleto",
		Installments:  24,
	})
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	fields := map[string]string{}
	for _, f := range inputErr.Fields {
		fields[f.Field] = f.Rule
	}
	assert.Equal(t, "email", fields["email"])
	assert.Equal(t, "cpf", fields["cpf"])
	assert.Equal(t, "oneof", fields["paymentMethod"])
	assert.Equal(t, "max", fields["installments"])
}

func TestPlaceRejectsQuote(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)

	_, err := svc.Place(context.Background(), Input{
		Email:         "buyer@example.com",
		CPF:           "07822816489",
		PaymentMethod: "pix",
		Installments:  3,
	})
	var rejected *QuoteRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "maximum of 1 installment", rejected.Reason)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestPlaceUnknownProduct(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	_, err := svc.Place(context.Background(), Input{
		ProductID:     "curso-go",
		Email:         "buyer@example.com",
		CPF:           "07822816489",
		PaymentMethod: "pix",
		Installments:  1,
	})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestPlaceAfterPromoExpires(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	open := fixedNow.Add(-5 * time.Minute)
	o, err := svc.Place(context.Background(), Input{
		Email: "buyer@example.com", CPF: "07822816489", PaymentMethod: "pix", Installments: 1, StartedAt: &open,
	})
	require.NoError(t, err)
	assert.Equal(t, "297", o.Pricing.EffectiveValue.String())

	expired := fixedNow.Add(-11 * time.Minute)
	o, err = svc.Place(context.Background(), Input{
		Email: "buyer@example.com", CPF: "07822816489", PaymentMethod: "pix", Installments: 1, StartedAt: &expired,
	})
	require.NoError(t, err)
	assert.Equal(t, "497", o.Pricing.EffectiveValue.String())
	assert.True(t, o.Pricing.Savings.IsZero())
}

type collidingStore struct {
	*MemoryStore
	failures int
}

func (c *collidingStore) Save(ctx context.Context, o Order) error {
	if c.failures > 0 {
		c.failures--
		return ErrDuplicate
	}
	return c.MemoryStore.Save(ctx, o)
}

func TestPlaceRetriesIDCollisions(t *testing.T) {
	in := Input{Email: "buyer@example.com", CPF: "07822816489", PaymentMethod: "pix", Installments: 1}

	svc := newTestService(t, &collidingStore{MemoryStore: NewMemoryStore(), failures: 2})
	_, err := svc.Place(context.Background(), in)
	require.NoError(t, err)

	svc = newTestService(t, &collidingStore{MemoryStore: NewMemoryStore(), failures: maxIDAttempts})
	_, err = svc.Place(context.Background(), in)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(DemoOrders(fixedNow)...))

	_, err := svc.Get(context.Background(), "../etc")
	require.ErrorIs(t, err, ErrNotFound)

	o, err := svc.Get(context.Background(), "CKT-1757969000000-EXEMPLO123")
	require.NoError(t, err)
	assert.Equal(t, 3, o.Installments)

	ok, err := svc.Exists(context.Background(), "CKT-1757968406214-FDTYQ2AKR")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	require.Error(t, err)
}

type recordingNotifier struct {
	topics []string
}

func (r *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	r.topics = append(r.topics, ev.Topic+" "+ev.AggregateID)
	return nil
}

func TestServiceEmitsEvents(t *testing.T) {
	products, err := catalog.NewService(catalog.DemoProducts())
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	svc, err := NewService(ServiceConfig{
		Store:   NewMemoryStore(),
		Pricing: pricing.NewService(pricing.ServiceConfig{}),
		Catalog: products,
		Events:  &events.Bus{Notifiers: []events.Notifier{notifier}},
	})
	require.NoError(t, err)

	o, err := svc.Place(context.Background(), Input{Email: "buyer@example.com", CPF: "07822816489", PaymentMethod: "pix", Installments: 1})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), o.ID, StatusCompleted)
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.TopicOrderPlaced + " " + o.ID,
		events.TopicOrderStatusChanged + " " + o.ID,
	}, notifier.topics)
}
