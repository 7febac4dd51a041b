package api

import (
	"errors"
	"io"
	"net/http"

	"framecast/internal/lifecycle"
	"framecast/internal/observability/metrics"
)

const maxWebhookBody = 1 << 20

// signatureHeader carries the hex HMAC-SHA256 of the raw request body.
const signatureHeader = "X-Webhook-Signature"

// VideoWebhook receives lifecycle events from the external video host.
// Deliveries with a bad signature are rejected before any side effect; once
// the signature verifies the endpoint acknowledges with 200 "OK" no matter
// how processing goes, so the host does not retry events we cannot use.
func (h *Handler) VideoWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	r.Body.Close()

	if !lifecycle.VerifySignature(h.WebhookSecret, body, r.Header.Get(signatureHeader)) {
		metrics.Default().ObserveWebhookEvent("unknown", "invalid_signature")
		writeError(w, http.StatusUnauthorized, errors.New("invalid webhook signature"))
		return
	}

	event, err := lifecycle.ParseEvent(body)
	if err != nil {
		h.logger().Warn("webhook payload not parseable", "error", err)
		metrics.Default().ObserveWebhookEvent("unknown", "failed")
		h.acknowledge(w)
		return
	}

	if h.Correlator == nil {
		metrics.Default().ObserveWebhookEvent(event.Type, "ignored")
		h.acknowledge(w)
		return
	}
	if err := h.Correlator.Handle(r.Context(), event); err != nil {
		h.logger().Error("webhook event processing failed", "type", event.Type, "error", err)
		metrics.Default().ObserveWebhookEvent(event.Type, "failed")
	} else {
		metrics.Default().ObserveWebhookEvent(event.Type, "processed")
	}
	h.acknowledge(w)
}

func (h *Handler) acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}
