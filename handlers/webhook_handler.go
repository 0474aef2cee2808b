package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/types/user"
	"repcirAPI/services"
)

const (
	maxWebhookBody     = 1 << 16
	svixTimestampSkew  = 5 * time.Minute
	svixSecretPrefix   = "whsec_"
	svixSignatureV1Tag = "v1,"
)

var (
	errMissingSvixHeaders = errors.New("missing svix headers")
	errStaleTimestamp     = errors.New("webhook timestamp outside tolerance")
	errNoMatchingSig      = errors.New("no matching signature")
)

type WebhookHandler struct {
	userService    *services.UserService
	billingService *services.BillingService
	clerkSecret    []byte
	now            func() time.Time
}

// NewWebhookHandler decodes the Clerk signing secret (whsec_ base64 form).
func NewWebhookHandler(userService *services.UserService, billingService *services.BillingService, clerkSecret string) (*WebhookHandler, error) {
	h := &WebhookHandler{
		userService:    userService,
		billingService: billingService,
		now:            time.Now,
	}
	if clerkSecret != "" {
		key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(clerkSecret, svixSecretPrefix))
		if err != nil {
			return nil, fmt.Errorf("invalid clerk webhook secret: %w", err)
		}
		h.clerkSecret = key
	}
	return h, nil
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if len(h.clerkSecret) == 0 {
		logger.Error().Msg("CLERK_WEBHOOK_SECRET not set, rejecting webhook")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}
	if err := h.verifySvix(r.Header, body); err != nil {
		logger.Warn().Err(err).Msg("Invalid clerk webhook signature")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event user.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	logger.Info().Str("type", event.Type).Msg("Received clerk webhook")

	switch event.Type {
	case "user.created", "user.updated":
		var data user.ClerkUserData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			respondWithError(w, http.StatusBadRequest, "Error parsing user data")
			return
		}
		err = h.userService.SyncUser(ctx, data.User())

	case "user.deleted":
		var data struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			respondWithError(w, http.StatusBadRequest, "Error parsing user data")
			return
		}
		err = h.userService.DeleteUser(ctx, data.ID)

	default:
		logger.Debug().Str("type", event.Type).Msg("Unhandled clerk webhook event")
	}

	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// verifySvix checks the svix-signature header against HMAC-SHA256 of
// "id.timestamp.body". The header may list several space separated signatures.
func (h *WebhookHandler) verifySvix(header http.Header, body []byte) error {
	id := header.Get("svix-id")
	ts := header.Get("svix-timestamp")
	sigs := header.Get("svix-signature")
	if id == "" || ts == "" || sigs == "" {
		return errMissingSvixHeaders
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid svix timestamp: %w", err)
	}
	sent := time.Unix(sec, 0)
	now := h.now()
	if sent.Before(now.Add(-svixTimestampSkew)) || sent.After(now.Add(svixTimestampSkew)) {
		return errStaleTimestamp
	}

	mac := hmac.New(sha256.New, h.clerkSecret)
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(sigs) {
		encoded, ok := strings.CutPrefix(candidate, svixSignatureV1Tag)
		if !ok {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return errNoMatchingSig
}

// HandleStripeWebhook processes events sent by Stripe
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Error reading body")
		return
	}

	err = h.billingService.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindPreconditionFailed) {
			respondWithError(w, http.StatusServiceUnavailable, apperrors.PublicMessage(err))
			return
		}
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
