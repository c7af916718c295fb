package telegram

import (
	"fmt"
	"strings"

	"tubewatch/internal/classify"
	"tubewatch/internal/resolver"
	"tubewatch/pkg/tgui"
)

// descriptionMaxRunes keeps the message well under Telegram's 4096-char
// limit even with long titles.
const descriptionMaxRunes = 600

// renderPayload builds the HTML notification message.
//
// Layout mirrors the announcement embed this replaces: channel name,
// linked title, trimmed description, then a kind-specific footer. Live
// items get a currently-live annotation instead of the uploaded footer,
// and a finished stream still renders as a live announcement once.
func renderPayload(p *resolver.Payload) string {
	title := p.Title
	if title == "" {
		title = p.URL
	}

	lines := []tgui.H{
		tgui.B(p.ChannelName),
		tgui.Link(title, p.URL),
	}

	if desc := strings.TrimSpace(p.Description); desc != "" {
		lines = append(lines, tgui.Esc(tgui.TruncRunes(desc, descriptionMaxRunes)))
	}

	lines = append(lines, tgui.I(footer(p)))

	return tgui.Lines(lines...).String()
}

func footer(p *resolver.Payload) string {
	if p.Live {
		return fmt.Sprintf("The channel is currently live streaming: %s", p.Title)
	}
	f := fmt.Sprintf("New %s has been uploaded!", p.Kind.String())
	if p.Kind != classify.KindLive && p.DurationText != "" {
		f += " (" + p.DurationText + ")"
	}
	if !p.PublishedAt.IsZero() {
		f += "\n" + p.PublishedAt.Format("2006-01-02 15:04 MST")
	}
	return f
}
