package telegram

import (
	"github.com/go-telegram/bot/models"

	"expense_tracker_bot/internal/event"
)

// ToEvent classifies an update. The second result is false for updates the
// bot does not react to.
func ToEvent(update *models.Update, botID int64) (event.Event, bool) {
	if update == nil {
		return nil, false
	}

	switch {
	case update.PreCheckoutQuery != nil:
		q := update.PreCheckoutQuery
		return event.PreCheckout{
			Sender:   sender(q.From, userID(q.From), botID),
			QueryID:  q.ID,
			Payload:  q.InvoicePayload,
			Currency: q.Currency,
			Total:    q.TotalAmount,
		}, true

	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		from := q.From
		return event.FromCallback(
			sender(&from, messageChatID(q.Message), botID),
			q.ID,
			messageID(q.Message),
			q.Data,
		), true

	case update.Message != nil:
		msg := update.Message
		s := sender(msg.From, chatID(&msg.Chat), botID)
		if msg.SuccessfulPayment != nil {
			p := msg.SuccessfulPayment
			return event.SuccessfulPayment{
				Sender:   s,
				Payload:  p.InvoicePayload,
				Currency: p.Currency,
				Total:    p.TotalAmount,
				ChargeID: p.TelegramPaymentChargeID,
			}, true
		}
		if msg.From == nil || msg.Text == "" {
			return nil, false
		}
		return event.FromText(s, msg.ID, msg.Text), true

	default:
		return nil, false
	}
}

func updateType(update *models.Update) string {
	switch {
	case update.Message != nil:
		return "message"
	case update.EditedMessage != nil:
		return "edited_message"
	case update.CallbackQuery != nil:
		return "callback_query"
	case update.PreCheckoutQuery != nil:
		return "pre_checkout_query"
	case update.MyChatMember != nil:
		return "my_chat_member"
	case update.ChatMember != nil:
		return "chat_member"
	default:
		return "unknown"
	}
}

func sender(user *models.User, chat int64, botID int64) event.Sender {
	s := event.Sender{
		UserID: userID(user),
		BotID:  botID,
		ChatID: chat,
	}
	if user != nil {
		s.Username = user.Username
		s.FirstName = user.FirstName
		s.LanguageCode = user.LanguageCode
	}
	if s.ChatID == 0 {
		s.ChatID = s.UserID
	}
	return s
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return chatID(&msg.Message.Chat)
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return chatID(&msg.InaccessibleMessage.Chat)
	default:
		return 0
	}
}

func messageID(msg models.MaybeInaccessibleMessage) int {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return msg.Message.ID
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return msg.InaccessibleMessage.MessageID
	default:
		return 0
	}
}
