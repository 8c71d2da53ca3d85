package board

import (
	"fmt"
	"strings"
	"time"

	"nightreign-lobby/internal/board/webhook"
	"nightreign-lobby/internal/lobby"
)

const (
	colorOpen    = 0x57F287
	colorFull    = 0xE67E22
	colorWarn    = 0xFEE75C
	colorClosed  = 0xED4245
	colorRequest = 0x5865F2

	shortIDLimit  = 10
	defaultFooter = "nightreign lobby board"
)

// FormatMessage renders events that are not folded into a lobby panel.
func FormatMessage(ev lobby.Event) (webhook.Message, bool) {
	if ev.Request == nil {
		return webhook.Message{}, false
	}
	req := ev.Request
	base := webhook.Message{
		Timestamp: eventTimestamp(ev.At),
		Footer:    defaultFooter + " | request:" + shortID(req.ID, shortIDLimit),
	}

	switch ev.Type {
	case lobby.EventMatchRequested:
		base.Title = "🔎 Looking for a group"
		base.Description = fmt.Sprintf("<@%s> asked %d open lobbies to take them in.", req.Requester.ID, len(req.Targets))
		base.Color = colorRequest
		base.Fields = []webhook.Field{
			{Name: "Player", Value: fallback(req.Requester.Name, "<@"+req.Requester.ID+">"), Inline: true},
			{Name: "Expires", Value: req.ExpiresAt.UTC().Format("15:04:05 MST"), Inline: true},
		}
		if len(req.Targets) > 0 {
			base.Fields = append(base.Fields, webhook.Field{Name: "Asked", Value: channelList(req.Targets), Inline: false})
		}
	case lobby.EventMatchExpired:
		base.Title = "⌛ Match request expired"
		base.Description = fmt.Sprintf("No lobby accepted <@%s> in time.", req.Requester.ID)
		base.Color = colorWarn
		base.Fields = []webhook.Field{
			{Name: "Declined by", Value: fmt.Sprintf("%d lobby(s)", len(req.DeniedBy)), Inline: true},
		}
	default:
		return webhook.Message{}, false
	}
	return base, true
}

func channelList(ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "<#"+id+">")
	}
	return trimText(strings.Join(parts, " "), 1024)
}

func trimText(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	if max <= 3 {
		return v[:max]
	}
	return v[:max-3] + "..."
}

func shortID(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[:max]
}

func lastDigits(v string, n int) string {
	if len(v) <= n {
		return v
	}
	return v[len(v)-n:]
}

func titleCase(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return strings.ToUpper(v[:1]) + v[1:]
}

func eventTimestamp(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return at.UTC().Format(time.RFC3339)
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
