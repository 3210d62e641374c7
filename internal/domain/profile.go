// Package domain defines the persisted user profile and ledger record types
// together with the profile repository.
package domain

import "time"

// ConversationStatus is the persisted state of a user's conversation.
type ConversationStatus int

const (
	// StatusRegular routes free text to the amount/description parser.
	StatusRegular ConversationStatus = 0
	// StatusAwaitingCategoryName routes the next free text to category creation.
	StatusAwaitingCategoryName ConversationStatus = 1
)

// String implements fmt.Stringer for log fields.
func (s ConversationStatus) String() string {
	switch s {
	case StatusRegular:
		return "regular"
	case StatusAwaitingCategoryName:
		return "awaiting_category_name"
	default:
		return "unknown"
	}
}

// ProfileKey identifies a profile: one per user and bot.
type ProfileKey struct {
	UserID int64
	BotID  int64
}

// PendingAction is the single-slot buffer awaiting a category choice. A new
// entry replaces an unresolved one.
// TODO: decide whether to queue entries instead; two devices logging at once
// lose the first amount.
type PendingAction struct {
	Amount      Money  `bson:"amount" json:"amount"`
	Description string `bson:"description" json:"description"`
	IsIncome    bool   `bson:"is_income" json:"is_income"`
}

// UserProfile holds everything persisted per user and bot.
type UserProfile struct {
	UserID       int64     `bson:"user_id" json:"user_id"`
	BotID        int64     `bson:"bot_id" json:"bot_id"`
	Username     string    `bson:"username" json:"username"`
	FirstName    string    `bson:"first_name" json:"first_name"`
	LanguageCode string    `bson:"language_code" json:"language_code"`
	JoinedAt     time.Time `bson:"joined_at" json:"joined_at"`

	ConversationStatus ConversationStatus `bson:"conversation_status" json:"conversation_status"`
	PendingAction      *PendingAction     `bson:"pending_action,omitempty" json:"pending_action,omitempty"`
	Categories         CategoryMap        `bson:"categories" json:"categories"`

	DailyRequests int64     `bson:"daily_requests" json:"daily_requests"`
	TotalRequests int64     `bson:"total_requests" json:"total_requests"`
	LastActive    time.Time `bson:"last_active" json:"last_active"`

	IsPremium   bool   `bson:"is_premium" json:"is_premium"`
	EndPremium  int64  `bson:"end_premium" json:"end_premium"`
	PremiumPlan string `bson:"premium_plan" json:"premium_plan"`

	ArtificialIntelligence bool   `bson:"artificial_intelligence" json:"artificial_intelligence"`
	DailyReminders         bool   `bson:"daily_reminders" json:"daily_reminders"`
	Timezone               string `bson:"timezone" json:"timezone"`
	Currency               string `bson:"currency" json:"currency"`
}

// Key returns the composite identity of the profile.
func (p UserProfile) Key() ProfileKey {
	return ProfileKey{UserID: p.UserID, BotID: p.BotID}
}

// CategorySet returns the profile's categories, falling back to the defaults
// for profiles that were created before categories were seeded.
func (p UserProfile) CategorySet() CategoryMap {
	if len(p.Categories) == 0 {
		return NewDefaultCategoryMap()
	}
	return p.Categories
}

// PremiumActive reports whether the subscription is set and unexpired at now.
func (p UserProfile) PremiumActive(now time.Time) bool {
	return p.IsPremium && p.EndPremium > now.Unix()
}

// PremiumExpired reports whether the flag is still set past its end.
func (p UserProfile) PremiumExpired(now time.Time) bool {
	return p.IsPremium && p.EndPremium <= now.Unix()
}
