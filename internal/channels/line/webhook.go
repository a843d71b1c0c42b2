package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the request body.
const SignatureHeader = "X-Line-Signature"

const maxWebhookBody = 1 << 20

// WebhookHandler verifies and decodes LINE webhook deliveries.
type WebhookHandler struct {
	channelSecret string
	onEvent       func(ctx context.Context, event Event)
}

// NewWebhookHandler creates a handler that calls onEvent for every event in a
// verified delivery, in order, before acknowledging it.
func NewWebhookHandler(channelSecret string, onEvent func(context.Context, Event)) *WebhookHandler {
	return &WebhookHandler{channelSecret: channelSecret, onEvent: onEvent}
}

// HandleInbound handles POST /webhook.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if !VerifySignature(h.channelSecret, body, signature) {
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// A dropped connection must not abort a half-finished turn.
	ctx := context.WithoutCancel(r.Context())
	for _, event := range req.Events {
		if h.onEvent != nil {
			h.onEvent(ctx, event)
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// VerifySignature checks the X-Line-Signature header against the channel secret.
func VerifySignature(channelSecret string, body []byte, signature string) bool {
	if channelSecret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// Sign returns the signature LINE would send for body. Used by tests and local tooling.
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
