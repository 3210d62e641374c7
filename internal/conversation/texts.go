package conversation

const startText = `Hey! 👋🏼

I'm here to help you track your expenses 💸

Send me your expenses like this:
👉🏼 2500 groceries
👉🏼 food 50

To record income, use a <b>+</b> sign:
💰 +1000 bonus

/stats 📊   View your spending stats
/history 📋   See your expense history
/delete ❌   Delete a recent record
/help 🆘   Full list of available commands`

const helpText = `Send me your expenses like this:
👉🏼 2500 groceries
👉🏼 food 50

To record income, use a + sign:
👉🏼 +1000 bonus

⚙️ <b>Bot Commands</b>

<b>/stats</b> 📊 – Show spending statistics
<b>/history</b> 📋 – Show records for a period
<b>/last</b> ⌛️ – Show last records <i>(e.g. /last 8)</i>
<b>/delete</b> ❌ – Delete a recent record
<b>/cancel</b> 🚫 – Cancel the current action
<b>/ai</b> 🤖 – Toggle automatic categorization
<b>/timezone</b> 🕒 – Set your UTC offset <i>(e.g. /timezone UTC+2)</i>
<b>/settings</b> ⚙️ – Show your settings
<b>/subscription</b> 💎 – View premium plans
<b>/categories</b> 🗂 – Manage your own categories ⭐️
<b>/export</b> 📁 – Download your history as CSV or XLSX ⭐️
<b>/help</b> 🆘 – Show this help message

⭐️ = <i>Premium features</i>`

const adminHelpText = `📋 <b>Admin Commands</b>

<b>/users_stats</b> – Global counts, or usage for <code>/users_stats &lt;user_id|me&gt;</code>
<b>/empty_user_data</b> – Delete all of your own records

These commands are restricted to admins.`

const premiumPitchText = `⚪️ <b>Subscription is inactive</b>

<b>What's included in Premium?</b>

🗂 <b>Custom Categories</b>
Add your own categories and hide the ones you don't use.

🧾 <b>Export</b>
Download your data as <b>Excel/CSV</b> for backups or analysis.

Pick a plan below to subscribe with Telegram Stars ⭐️`

const (
	premiumRequiredText  = "⭐️ This feature is available with a <b>Premium</b> subscription. See /subscription."
	adminOnlyText        = "⛔ This command is only for admins."
	unknownCommandText   = "Sorry, I didn't understand that command.\nTry /help for a list of commands."
	staleButtonText      = "⚠️ This button is no longer valid."
	cancelledText        = "🚫 Cancelled."
	nothingPendingText   = "🤷 Nothing pending. Send an amount and a description first."
	nothingPendingToast  = "Nothing pending"
	alreadyDeletedText   = "🤷 This record was already deleted."
	pickWindowText       = "Select time period:"
	pickCategoryText     = "Please select a category:"
	categoryNamePrompt   = "✍️ Send the name of the new category (up to 30 characters)."
	tooLongText          = "⚠️ Message too long. Please keep it under 100 characters."
	bothEndsText         = "⚠️ Invalid format. The amount should be at the start or the end, not both."
	amountTooLargeText   = "⚠️ That amount has too many digits. Please enter a smaller number."
	formatText           = "⚠️ Please use the format: <code>amount description</code>, e.g. <code>12.50 lunch</code>."
	lastUsageText        = "Please provide a valid positive number. Example: /last 5"
	exportUsageText      = "Please choose a format: /export csv or /export xlsx"
	timezoneUsageText    = "⚠️ Use the format UTC±H, from UTC-12 to UTC+14. Example: /timezone UTC+2"
	usersStatsUsageText  = "Usage: /users_stats, /users_stats me or /users_stats <user_id>"
	noRecordsText        = "No records found."
	noRecordsDeleteText  = "No records found to delete."
	noRecordsExportText  = "⚠️ No records found to export."
	unavailableCatText   = "⚠️ That category is no longer available. Please pick another one:"
	protectedCatToast    = "This category can't be removed"
	unknownCatToast      = "Unknown category"
	unknownPlanToast     = "Unknown plan"
	checkoutRejectedText = "This plan is no longer available. Please pick one again from /subscription."
)
