package main

import (
	"time"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"APP_NAME" envDefault:"billingd"`

	PlansPath string `env:"PLANS_PATH" envDefault:"configs/plans.yml"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`

	// Price mappings, e.g. "personal:price_123,business:price_456".
	PlanPrices    map[string]string `env:"STRIPE_PLAN_PRICES,required"`
	MeteredPrices map[string]string `env:"STRIPE_METERED_PRICES"`

	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL,required"`
	CheckoutCancelURL  string `env:"CHECKOUT_CANCEL_URL,required"`
	PortalReturnURL    string `env:"PORTAL_RETURN_URL,required"`

	GracePeriod time.Duration `env:"PAYMENT_GRACE_PERIOD" envDefault:"168h"`

	// BillingLocation anchors monthly usage periods, e.g. "UTC" or
	// "America/New_York".
	BillingLocation string `env:"BILLING_LOCATION" envDefault:"UTC"`

	// RedisURL enables Redis-backed webhook deduplication; when empty the
	// database table is used instead.
	RedisURL string `env:"REDIS_URL"`

	EmailEnabled bool `env:"EMAIL_ENABLED" envDefault:"false"`

	// EmailDevDir writes outgoing email to disk instead of Postmark, for
	// local development. Takes precedence over EMAIL_ENABLED when set.
	EmailDevDir string `env:"EMAIL_DEV_DIR"`
}

func (c appConfig) meteredPrices() map[catalog.Resource]string {
	if len(c.MeteredPrices) == 0 {
		return nil
	}
	out := make(map[catalog.Resource]string, len(c.MeteredPrices))
	for res, price := range c.MeteredPrices {
		out[catalog.Resource(res)] = price
	}
	return out
}
