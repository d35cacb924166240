package api

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strings"

	"rentescrow/internal/gateway"
	"rentescrow/internal/models"
	"rentescrow/internal/service"
)

const maxWebhookBody = 1 << 20

// webhookPayload is a Squad notification.
type webhookPayload struct {
	Event string `json:"Event"`
	Body  struct {
		TransactionStatus string `json:"transaction_status"`
		TransactionRef    string `json:"transaction_ref"`
	} `json:"Body"`
}

// handleWebhook acknowledges every well-formed delivery with 200 so the
// gateway stops redelivering. Internal failures answer 500 to get a retry.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !s.checkSignature(r, raw) {
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature mismatch")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	outcome, err := s.deps.Reconciler.HandleWebhook(
		r.Context(),
		payload.Event,
		payload.Body.TransactionStatus,
		strings.TrimSpace(payload.Body.TransactionRef),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("transaction_ref", payload.Body.TransactionRef).Msg("webhook failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := service.WebhookOK
	if outcome == service.WebhookIgnored {
		status = service.WebhookIgnored
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// checkSignature verifies the delivery when a signature is sent or required.
func (s *HTTPServer) checkSignature(r *http.Request, body []byte) bool {
	sig := r.Header.Get(gateway.SignatureHeader)
	if sig == "" {
		return !s.webhook.RequireSignature
	}
	return gateway.VerifySignature(s.webhook.Secret, body, sig)
}

var referencePage = template.Must(template.New("reference").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Payment {{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Reference}}<p>Reference: <code>{{.Reference}}</code></p>{{end}}
{{if .Listing}}<p>Listing: {{.Listing}}</p>{{end}}
{{if .Amount}}<p>Amount: &#8358;{{.Amount}}</p>{{end}}
</body>
</html>
`))

type referenceView struct {
	Title     string
	Message   string
	Reference string
	Listing   string
	Amount    string
}

// handleWebhookPage renders a read-only status page for the gateway redirect.
func (s *HTTPServer) handleWebhookPage(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("reference"))
	view := referenceView{Reference: ref}
	statusCode := http.StatusOK

	status, err := s.deps.Reconciler.LookupReference(r.Context(), ref)
	switch {
	case err == nil:
		view.Listing = status.ListingTitle
		view.Amount = models.FormatAmount(status.Payment.Amount)
		view.Title, view.Message = pageText(status.PaymentStatus)
	case service.KindOf(err) == service.KindValidation:
		statusCode = http.StatusBadRequest
		view.Title, view.Message = "not found", "A payment reference is required."
	case service.KindOf(err) == service.KindNotFound:
		statusCode = http.StatusNotFound
		view.Title, view.Message = "not found", "We could not find a payment with this reference."
	default:
		s.logger.Error().Err(err).Str("reference", ref).Msg("reference page failed")
		statusCode = http.StatusInternalServerError
		view.Title, view.Message = "unavailable", "Please try again later."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := referencePage.Execute(w, view); err != nil {
		s.logger.Error().Err(err).Msg("render reference page")
	}
}

func pageText(paymentStatus string) (title, message string) {
	switch paymentStatus {
	case models.PaymentPaid:
		return "received", "Your payment was received. Confirm the booking once you have checked the property."
	case models.PaymentFailed:
		return "failed", "The payment did not go through. You can try again from your bookings."
	default:
		return "processing", "Your payment is being processed. This page does not update automatically."
	}
}
