package handlers

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Messenger implements music.Messenger over a discordgo session.
// Both operations are fire-and-forget; failures are logged only.
type Messenger struct {
	s *discordgo.Session
}

func NewMessenger(s *discordgo.Session) *Messenger {
	return &Messenger{s: s}
}

func (m *Messenger) Send(channelID, content string) {
	if _, err := m.s.ChannelMessageSend(channelID, content); err != nil {
		slog.Warn("message send failed", "channelID", channelID, "err", err)
	}
}

func (m *Messenger) DeleteMessages(channelID string, messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}
	if err := m.s.ChannelMessagesBulkDelete(channelID, messageIDs); err != nil {
		slog.Debug("message delete failed", "channelID", channelID, "err", err)
	}
}
