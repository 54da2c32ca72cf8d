package discord

import (
	"fmt"

	"vpsd/internal/models"
	"vpsd/internal/utils"
)

// Event colors for webhook embeds.
const (
	colorCreated   = 0x22C55E
	colorSuspended = 0xEF4444
	colorResumed   = 0x2563EB
)

// WebhookNotifier posts lifecycle events as webhook embeds. Best-effort:
// failures are logged and otherwise ignored.
type WebhookNotifier struct {
	URL string
	Log *utils.Logger
}

// Notify implements the engine's notifier contract.
func (n *WebhookNotifier) Notify(ev models.Event) {
	if n == nil || n.URL == "" {
		return
	}
	var title string
	color := colorResumed
	switch ev.Type {
	case models.EventCreated:
		title = fmt.Sprintf("VPS created: %s", ev.VPSID)
		color = colorCreated
	case models.EventSuspended, models.EventAutoSuspended:
		title = fmt.Sprintf("VPS suspended: %s", ev.VPSID)
		color = colorSuspended
	case models.EventResumed:
		title = fmt.Sprintf("VPS resumed: %s", ev.VPSID)
	default:
		return
	}
	desc := fmt.Sprintf("Customer: %s", ev.Customer)
	if ev.Reason != "" {
		desc += fmt.Sprintf("\nReason: %s", ev.Reason)
	}
	status, err := Post(n.URL, WebhookPayload{Embeds: []Embed{NewEmbed(title, desc, color)}})
	if err != nil || status < 200 || status >= 300 {
		n.Log.Writef("Discord webhook notify failed (status=%d): %v", status, err)
	}
}
