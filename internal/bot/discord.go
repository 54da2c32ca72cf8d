package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"vpsd/internal/models"
	"vpsd/internal/utils"
)

const commandPrefix = "/"

// Discord runs the dispatcher over a Discord gateway session and doubles
// as a notification sink posting lifecycle events to the configured
// channel.
type Discord struct {
	session *discordgo.Session
	disp    *Dispatcher
	channel string
	log     *utils.Logger

	mu        sync.Mutex
	channelID string
}

// NewDiscord creates a gateway-backed chat transport. notifyChannel is the
// channel name lifecycle notifications are posted to.
func NewDiscord(token string, disp *Dispatcher, notifyChannel string, log *utils.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	d := &Discord{session: session, disp: disp, channel: notifyChannel, log: log}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	session.AddHandler(d.onMessage)
	return d, nil
}

// Start opens the gateway connection.
func (d *Discord) Start() error {
	return d.session.Open()
}

// Close shuts the gateway connection down.
func (d *Discord) Close() error {
	return d.session.Close()
}

func (d *Discord) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, commandPrefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(content, commandPrefix))
	if len(fields) == 0 {
		return
	}

	reply := d.disp.Handle(context.Background(), m.Author.ID, fields[0], fields[1:])
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		d.log.Writef("discord reply failed: %v", err)
	}
}

// Notify implements the engine's notifier contract by posting event text
// to the notification channel. Best-effort.
func (d *Discord) Notify(ev models.Event) {
	text := formatEvent(ev)
	if text == "" {
		return
	}
	channelID := d.notificationChannelID()
	if channelID == "" {
		return
	}
	if _, err := d.session.ChannelMessageSend(channelID, text); err != nil {
		d.log.Writef("discord notify failed: %v", err)
	}
}

func formatEvent(ev models.Event) string {
	switch ev.Type {
	case models.EventAutoSuspended:
		return fmt.Sprintf("⚠️ VPS `%s` owned by `%s` suspended due to high resource usage.", ev.VPSID, ev.Customer)
	case models.EventSuspended:
		return fmt.Sprintf("🚨 VPS `%s` owned by `%s` suspended. Reason: %s", ev.VPSID, ev.Customer, ev.Reason)
	case models.EventCreated:
		return fmt.Sprintf("✅ VPS `%s` created for customer `%s`.", ev.VPSID, ev.Customer)
	case models.EventResumed:
		return fmt.Sprintf("▶️ VPS `%s` owned by `%s` resumed.", ev.VPSID, ev.Customer)
	default:
		return ""
	}
}

// notificationChannelID resolves the configured channel name to an ID,
// caching the result.
func (d *Discord) notificationChannelID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.channelID != "" {
		return d.channelID
	}
	if d.channel == "" {
		return ""
	}
	for _, guild := range d.session.State.Guilds {
		channels, err := d.session.GuildChannels(guild.ID)
		if err != nil {
			continue
		}
		for _, ch := range channels {
			if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == d.channel {
				d.channelID = ch.ID
				return d.channelID
			}
		}
	}
	return ""
}
