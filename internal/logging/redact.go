package logging

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	redactedMarker  = "[REDACTED]"
	minSecretLength = 8
)

// RedactHook masks configured secrets in messages, string fields and errors.
// Bot API client errors embed the request URL, which carries the bot token.
type RedactHook struct {
	replacer *strings.Replacer
}

// NewRedactHook returns nil when no secret is long enough to mask safely.
func NewRedactHook(secrets ...string) *RedactHook {
	pairs := make([]string, 0, len(secrets)*2)
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if len(s) < minSecretLength {
			continue
		}
		pairs = append(pairs, s, redactedMarker)
	}
	if len(pairs) == 0 {
		return nil
	}
	return &RedactHook{replacer: strings.NewReplacer(pairs...)}
}

// Levels applies the hook to every level.
func (h *RedactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire rewrites the entry in place.
func (h *RedactHook) Fire(entry *logrus.Entry) error {
	entry.Message = h.replacer.Replace(entry.Message)

	for key, value := range entry.Data {
		switch v := value.(type) {
		case string:
			entry.Data[key] = h.replacer.Replace(v)
		case error:
			masked := h.replacer.Replace(v.Error())
			if masked != v.Error() {
				entry.Data[key] = errors.New(masked)
			}
		}
	}
	return nil
}
