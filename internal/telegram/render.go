package telegram

import (
	"bytes"
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/logging"
)

// render sends every reply, then answers the callback or pre-checkout query
// the event came from. A failed send is logged and does not stop the rest.
func (c *Client) render(ctx context.Context, ev event.Event, resp event.Response) {
	chat := ev.From().ChatID
	editable := 0
	if q, ok := ev.(event.CallbackQuery); ok {
		editable = q.MessageID
	}

	for _, reply := range resp.Replies {
		if err := c.send(ctx, chat, editable, reply); err != nil {
			c.logger.WithFields(logging.Fields{
				"event":   "telegram_send_failed",
				"chat_id": chat,
				"kind":    ev.Kind(),
			}).WithError(err).Warn("failed to deliver reply")
		}
	}

	switch e := ev.(type) {
	case event.CallbackQuery:
		_, err := c.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: e.QueryID,
			Text:            resp.CallbackText,
		})
		if err != nil {
			c.logger.WithField("event", "telegram_callback_answer_failed").WithError(err).Warn("failed to answer callback query")
		}
	case event.PreCheckout:
		answer := event.PreCheckoutAnswer{}
		if resp.PreCheckout != nil {
			answer = *resp.PreCheckout
		}
		_, err := c.api.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
			PreCheckoutQueryID: e.QueryID,
			OK:                 answer.OK,
			ErrorMessage:       answer.Error,
		})
		if err != nil {
			c.logger.WithField("event", "telegram_precheckout_answer_failed").WithError(err).Error("failed to answer pre-checkout query")
		}
	}
}

func (c *Client) send(ctx context.Context, chat int64, editable int, reply event.Reply) error {
	switch {
	case reply.Invoice != nil:
		inv := reply.Invoice
		_, err := c.api.SendInvoice(ctx, &bot.SendInvoiceParams{
			ChatID:      chat,
			Title:       inv.Title,
			Description: inv.Description,
			Payload:     inv.Payload,
			Currency:    inv.Currency,
			Prices:      []models.LabeledPrice{{Label: inv.Label, Amount: inv.Amount}},
		})
		return err

	case reply.Document != nil:
		doc := reply.Document
		_, err := c.api.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID:   chat,
			Document: &models.InputFileUpload{Filename: doc.Filename, Data: bytes.NewReader(doc.Data)},
			Caption:  doc.Caption,
		})
		return err

	case reply.Edit && editable != 0:
		params := &bot.EditMessageTextParams{
			ChatID:    chat,
			MessageID: editable,
			Text:      event.Truncate(reply.Text),
			ParseMode: parseMode(reply),
		}
		if markup := keyboard(reply.Buttons); markup != nil {
			params.ReplyMarkup = markup
		}
		_, err := c.api.EditMessageText(ctx, params)
		return err

	default:
		if reply.Text == "" {
			return nil
		}
		params := &bot.SendMessageParams{
			ChatID:    chat,
			Text:      event.Truncate(reply.Text),
			ParseMode: parseMode(reply),
		}
		if markup := keyboard(reply.Buttons); markup != nil {
			params.ReplyMarkup = markup
		}
		_, err := c.api.SendMessage(ctx, params)
		return err
	}
}

func parseMode(reply event.Reply) models.ParseMode {
	if reply.HTML {
		return models.ParseModeHTML
	}
	return ""
}

// keyboard converts button rows into an inline keyboard. Nil rows produce no
// markup, which also clears the keyboard of an edited message.
func keyboard(rows [][]event.Button) *models.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}

	markup := &models.InlineKeyboardMarkup{InlineKeyboard: make([][]models.InlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.Callback.Encode(),
			})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}
