package billing_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xspensesai/billingkit/pkg/payment"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*payment.Customer, error) {
	args := m.Called(ctx, email, metadata)
	if c := args.Get(0); c != nil {
		return c.(*payment.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) RetrieveCustomer(ctx context.Context, customerID string) (*payment.Customer, error) {
	args := m.Called(ctx, customerID)
	if c := args.Get(0); c != nil {
		return c.(*payment.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if s := args.Get(0); s != nil {
		return s.(*payment.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]payment.Subscription, error) {
	args := m.Called(ctx, customerID)
	if s := args.Get(0); s != nil {
		return s.([]payment.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) UpdateSubscriptionItem(ctx context.Context, params payment.PlanChangeParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *mockProvider) CreateSubscriptionSchedule(ctx context.Context, params payment.ScheduleParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *mockProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	return m.Called(ctx, subscriptionID, cancel).Error(0)
}

func (m *mockProvider) PayInvoice(ctx context.Context, invoiceID string) error {
	return m.Called(ctx, invoiceID).Error(0)
}

func (m *mockProvider) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) ReportUsage(ctx context.Context, itemID string, quantity int64, at time.Time) error {
	return m.Called(ctx, itemID, quantity, at).Error(0)
}
