package event

import "unicode"

// MaxMessageLength is the transport's per-message bound, in UTF-16 code
// units.
const MaxMessageLength = 4096

// Button is one inline keyboard button.
type Button struct {
	Text     string
	Callback Callback
}

// Document is a file sent to the user.
type Document struct {
	Filename string
	Data     []byte
	Caption  string
}

// Invoice asks the transport to issue a payment request.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	Label       string
	Amount      int
}

// Reply is one outbound message.
type Reply struct {
	Text    string
	HTML    bool
	Buttons [][]Button
	// Edit replaces the message the callback came from instead of sending a
	// new one.
	Edit     bool
	Document *Document
	Invoice  *Invoice
}

// PreCheckoutAnswer confirms or rejects a purchase.
type PreCheckoutAnswer struct {
	OK    bool
	Error string
}

// Response is everything the bot sends back for one event.
type Response struct {
	Replies []Reply
	// CallbackText is shown as a toast when answering a button press.
	CallbackText string
	PreCheckout  *PreCheckoutAnswer
}

// Text builds a plain single-message response.
func Text(text string) Response {
	return Response{Replies: []Reply{{Text: text}}}
}

// HTML builds a single HTML message response.
func HTML(text string) Response {
	return Response{Replies: []Reply{{Text: text, HTML: true}}}
}

// Empty is a response that sends nothing.
func Empty() Response {
	return Response{}
}

// Add appends a reply.
func (r Response) Add(reply Reply) Response {
	r.Replies = append(r.Replies, reply)
	return r
}

// TextLength measures text the way the transport does: in UTF-16 code
// units. Markup and entities are counted too, which overestimates the
// visible length.
func TextLength(text string) int {
	n := 0
	for _, r := range text {
		n += unitLen(r)
	}
	return n
}

func unitLen(r rune) int {
	if n := utf16RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// utf16RuneLen mirrors unicode/utf16.RuneLen (Go 1.23+): 1 or 2 code
// units for a valid rune, -1 for surrogates and out-of-range values.
func utf16RuneLen(r rune) int {
	switch {
	case 0 <= r && r < 0xd800, 0xe000 <= r && r < 0x10000:
		return 1
	case 0x10000 <= r && r <= unicode.MaxRune:
		return 2
	default:
		return -1
	}
}

// Truncate bounds text to MaxMessageLength, ending in an ellipsis when
// shortened. Surrogate pairs are never split.
func Truncate(text string) string {
	if TextLength(text) <= MaxMessageLength {
		return text
	}

	budget := MaxMessageLength - 1
	used := 0
	for i, r := range text {
		n := unitLen(r)
		if used+n > budget {
			return text[:i] + "…"
		}
		used += n
	}
	return text
}

// Row builds a keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}
