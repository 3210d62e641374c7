// Package webhook adapts API Gateway proxy requests carrying Telegram updates
// to the telegram client.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/logging"
)

// SecretHeader carries the secret token configured with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler processes one decoded update synchronously.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *models.Update)
}

// Handler validates and decodes webhook deliveries.
type Handler struct {
	updates UpdateHandler
	secret  string
	logger  *logrus.Entry
}

// NewHandler constructs a Handler. An empty secret disables the token check.
func NewHandler(updates UpdateHandler, secret string, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handler{
		updates: updates,
		secret:  secret,
		logger:  logger,
	}
}

// Handle is the Lambda entrypoint. Telegram retries non-2xx deliveries, so
// only malformed or unauthenticated requests get an error status; a handled
// update always answers 200 even when the event itself failed.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return reply(http.StatusMethodNotAllowed), nil
	}

	if h.secret != "" {
		got := header(req.Headers, SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.WithField("event", "webhook_unauthorized").Warn("rejected webhook with bad secret token")
			return reply(http.StatusUnauthorized), nil
		}
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			h.logger.WithField("event", "webhook_bad_body").WithError(err).Warn("failed to decode webhook body")
			return reply(http.StatusBadRequest), nil
		}
		body = decoded
	}

	var update models.Update
	if err := json.Unmarshal(body, &update); err != nil {
		h.logger.WithField("event", "webhook_bad_body").WithError(err).Warn("failed to parse telegram update")
		return reply(http.StatusBadRequest), nil
	}

	h.logger.WithFields(logging.Fields{
		"event":     "webhook_update",
		"update_id": update.ID,
	}).Debug("handling webhook update")

	h.updates.HandleUpdate(ctx, &update)
	return reply(http.StatusOK), nil
}

func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func reply(status int) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       http.StatusText(status),
	}
}
