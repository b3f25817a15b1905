package ops

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xspensesai/billingkit/pkg/billing"
	"github.com/xspensesai/billingkit/pkg/logger"
	"github.com/xspensesai/billingkit/pkg/payment"
)

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

// Router mounts the billing HTTP surface:
//
//	POST /billing/actions  - execute one billing action
//	GET  /billing/usage    - current entitlements snapshot
//	POST /webhooks/stripe  - provider callback ingestion
//
// Billing routes require an authenticated account id on the request
// context (see WithAccountID); the webhook route authenticates by payload
// signature instead.
func Router(f *Facade, parser payment.WebhookParser, rec *billing.Reconciler, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Route("/billing", func(r chi.Router) {
		r.Post("/actions", handleAction(f))
		r.Get("/usage", handleUsage(f, log))
	})
	r.Post("/webhooks/stripe", handleWebhook(parser, rec, log))
	return r
}

func handleAction(f *Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, authed := AccountIDFromContext(r.Context())
		if !authed {
			writeJSON(w, http.StatusUnauthorized, fail(CodeValidation, "Missing authenticated account."))
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, fail(CodeValidation, "Malformed request body."))
			return
		}

		res := f.Execute(r.Context(), accountID, req)
		status := http.StatusOK
		if res.Status != "ok" {
			status = statusForCode(res.Code)
		}
		writeJSON(w, status, res)
	}
}

func handleUsage(f *Facade, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, authed := AccountIDFromContext(r.Context())
		if !authed {
			writeJSON(w, http.StatusUnauthorized, fail(CodeValidation, "Missing authenticated account."))
			return
		}

		ent, err := f.Usage(r.Context(), accountID)
		if err != nil {
			res := f.failure(r.Context(), err)
			writeJSON(w, statusForCode(res.Code), res)
			return
		}
		writeJSON(w, http.StatusOK, ent)
	}
}

func handleWebhook(parser payment.WebhookParser, rec *billing.Reconciler, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}

		ev, err := parser.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			log.WarnContext(r.Context(), "webhook rejected", logger.Error(err))
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}

		if err := rec.Process(r.Context(), ev); err != nil {
			// Non-2xx makes the provider redeliver; the dedup mark was
			// already released.
			log.ErrorContext(r.Context(), "webhook processing failed",
				logger.EventID(ev.ID),
				logger.EventType(string(ev.Type)),
				logger.Error(err),
			)
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation, CodeInvalidQuantity:
		return http.StatusBadRequest
	case CodeAccountNotFound, CodeUnknownPlan:
		return http.StatusNotFound
	case CodeNoBillingAccount, CodeNoActiveSubscription:
		return http.StatusConflict
	case CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
