// Package format implements the alert formatter (C8): a pure function that
// turns a resolved detection into the exact subscriber-visible alert text.
package format

import (
	"strings"

	"tg-alert-filter/internal/domain"
)

const maxTextChars = 3200

// Alert renders the final plain-text message for a forwarded detection.
// kinds drives the threat line, joined with " + " in the order given;
// prox supplies the proximity tag, which is omitted for ProximityNone
// (nationwide alerts use domain.NationwideTag instead).
func Alert(kinds []domain.ThreatKind, prox domain.Proximity, nationwide bool, channelTitle, text string, urgent bool) string {
	var b strings.Builder

	if urgent {
		b.WriteString("🔁 ПОВТОРНО\n")
	}

	threatLine := threatLine(kinds)
	proxTag := prox.Tag()
	if nationwide {
		proxTag = domain.NationwideTag
	}

	if proxTag == "" {
		b.WriteString(threatLine)
		b.WriteByte('\n')
	} else {
		b.WriteString(threatLine)
		b.WriteString(" · ")
		b.WriteString(proxTag)
		b.WriteByte('\n')
	}

	b.WriteString("———\n")
	b.WriteString(truncate(text, maxTextChars))
	b.WriteByte('\n')
	b.WriteString("— 📡 ")
	b.WriteString(channelTitle)

	return b.String()
}

func threatLine(kinds []domain.ThreatKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.Emoji() + " " + k.Label()
	}
	return strings.Join(parts, " + ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
