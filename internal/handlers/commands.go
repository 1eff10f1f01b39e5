package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/soundfork/melobot/internal/config"
	"github.com/soundfork/melobot/internal/music"
	"github.com/soundfork/melobot/internal/repository"
	"github.com/soundfork/melobot/internal/resolver"
	"github.com/soundfork/melobot/internal/ui"
	"github.com/soundfork/melobot/internal/utils"
)

type CommandHandler struct {
	cfg    *config.Config
	orc    *music.Orchestrator
	expand *resolver.QueryExpander
	repo   *repository.Repo
}

func NewCommandHandler(cfg *config.Config, orc *music.Orchestrator, expand *resolver.QueryExpander, repo *repository.Repo) *CommandHandler {
	return &CommandHandler{cfg: cfg, orc: orc, expand: expand, repo: repo}
}

func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string) error {
	cmds := []*discordgo.ApplicationCommand{
		{Name: "summon", Description: "Join your voice channel and bind this text channel"},
		{
			Name:        "play",
			Description: "Play a song (YouTube URL, Spotify URL, or search)",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "query or URL", Type: discordgo.ApplicationCommandOptionString, Required: true},
			},
		},
		{
			Name:        "skip",
			Description: "Vote to skip the current track",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "force", Description: "skip without a vote (needs Manage Server)", Type: discordgo.ApplicationCommandOptionBoolean},
			},
		},
		{
			Name:        "volume",
			Description: "Set guild playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "percent", Description: "0-200", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{Name: "disconnect", Description: "Stop, clear and leave the voice channel"},
		{Name: "queue", Description: "Show the queue"},
		{Name: "now-playing", Description: "Show the current track"},
		{
			Name:        "config",
			Description: "View or change guild settings",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "view", Description: "Show the current settings", Type: discordgo.ApplicationCommandOptionSubCommand},
				{
					Name:        "set",
					Description: "Change settings (needs Manage Server)",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "default-volume", Description: "0-200", Type: discordgo.ApplicationCommandOptionInteger},
						{Name: "wait-after-empty", Description: "seconds to linger once the queue empties, 0 = stay", Type: discordgo.ApplicationCommandOptionInteger},
						{Name: "leave-if-no-listeners", Description: "disconnect when everyone leaves the voice channel", Type: discordgo.ApplicationCommandOptionBoolean},
						{Name: "queue-limit", Description: "max queued tracks, 0 = unlimited", Type: discordgo.ApplicationCommandOptionInteger},
					},
				},
			},
		},
	}
	_, err := s.ApplicationCommandBulkOverwrite(appID, "", cmds)
	return err
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || i.GuildID == "" || i.Member == nil {
		return
	}
	switch i.ApplicationCommandData().Name {
	case "summon":
		h.cmdSummon(s, i)
	case "play":
		h.cmdPlay(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "volume":
		h.cmdVolume(s, i)
	case "stop":
		h.cmdStop(s, i)
	case "disconnect":
		h.cmdDisconnect(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "now-playing":
		h.cmdNowPlaying(s, i)
	case "config":
		h.cmdConfig(s, i)
	default:
		slog.Debug("unknown command", "name", i.ApplicationCommandData().Name, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) cmdSummon(s *discordgo.Session, i *discordgo.InteractionCreate) {
	voiceID, ok := userInVoice(s, i.GuildID, i.Member.User.ID)
	if !ok {
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}
	if err := h.orc.Connect(context.Background(), i.GuildID, voiceID, i.ChannelID); err != nil {
		h.replyErr(s, i, err)
		return
	}
	h.reply(s, i, ":headphones:  |  Connected. Paste a link or use /play.", false)
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	query := i.ApplicationCommandData().Options[0].StringValue()
	guildID := i.GuildID
	memberID := i.Member.User.ID

	voiceID, ok := userInVoice(s, guildID, memberID)
	if !ok {
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}

	ctx := context.Background()
	if err := h.orc.Connect(ctx, guildID, voiceID, i.ChannelID); err != nil {
		h.replyErr(s, i, err)
		return
	}

	h.deferReply(s, i)

	urls, err := h.expand.Expand(ctx, query)
	if err != nil {
		slog.Warn("query expansion failed", "guildID", guildID, "query", query, "err", err)
		h.editReply(s, i, errText(err))
		return
	}

	added := 0
	var first *music.Track
	var firstQueued bool
	var lastErr error
	for _, url := range urls {
		track, queued, err := h.orc.Add(ctx, guildID, memberID, url)
		if err != nil {
			lastErr = err
			slog.Debug("add failed", "guildID", guildID, "url", url, "err", err)
			continue
		}
		added++
		if first == nil {
			first, firstQueued = track, queued
		}
	}

	switch {
	case added == 0 && lastErr != nil:
		h.editReply(s, i, errText(lastErr))
	case added == 1 && firstQueued:
		h.editReply(s, i, fmt.Sprintf(":white_check_mark:  |  Queued **%s** (%s)",
			utils.EscapeMd(first.Title), utils.PrettyTime(first.Length)))
	case added == 1:
		h.editReply(s, i, fmt.Sprintf(":notes:  |  Now playing **%s** (%s)",
			utils.EscapeMd(first.Title), utils.PrettyTime(first.Length)))
	default:
		h.editReply(s, i, fmt.Sprintf(":white_check_mark:  |  Added %d tracks, starting with **%s**",
			added, utils.EscapeMd(first.Title)))
	}
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	force := false
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "force" {
			force = opt.BoolValue()
		}
	}
	if force && i.Member.Permissions&discordgo.PermissionManageGuild == 0 {
		force = false
	}

	outcome, err := h.orc.Skip(i.GuildID, i.Member.User.ID, force)
	if err != nil {
		h.replyErr(s, i, err)
		return
	}
	switch outcome {
	case music.SkipAlreadyVoted:
		h.reply(s, i, "you already voted to skip this track", true)
	case music.SkipVotePending:
		h.reply(s, i, ":ballot_box:  |  Skip vote counted.", false)
	default:
		h.reply(s, i, ":track_next:  |  Skipped.", false)
	}
}

func (h *CommandHandler) cmdVolume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	percent := int(i.ApplicationCommandData().Options[0].IntValue())
	if percent < 0 || percent > 200 {
		h.reply(s, i, "volume must be between 0 and 200", true)
		return
	}
	h.orc.SetVolume(i.GuildID, percent)
	h.reply(s, i, fmt.Sprintf(":loud_sound:  |  Volume set to %d%% for the next track.", percent), false)
}

func (h *CommandHandler) cmdStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.orc.Stop(i.GuildID); err != nil {
		h.replyErr(s, i, err)
		return
	}
	h.reply(s, i, ":stop_button:  |  Stopped and cleared the queue.", false)
}

func (h *CommandHandler) cmdDisconnect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.orc.Disconnect(i.GuildID)
	h.reply(s, i, ":wave:  |  Disconnected.", false)
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	current, _ := h.orc.Current(i.GuildID)
	embed := ui.BuildQueueEmbed(current, h.orc.QueueSnapshot(i.GuildID))
	h.replyEmbed(s, i, embed)
}

func (h *CommandHandler) cmdNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	current, _ := h.orc.Current(i.GuildID)
	embed := ui.BuildPlayingEmbed(current, h.orc.QueueLength(i.GuildID))
	h.replyEmbed(s, i, embed)
}

func (h *CommandHandler) cmdConfig(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	set, err := h.repo.UpsertSettings(ctx, i.GuildID)
	if err != nil {
		h.replyErr(s, i, err)
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "view":
		h.reply(s, i, formatSettings(set), true)
	case "set":
		if i.Member.Permissions&discordgo.PermissionManageGuild == 0 {
			h.reply(s, i, "you need Manage Server to change my settings", true)
			return
		}
		for _, opt := range sub.Options {
			switch opt.Name {
			case "default-volume":
				v := int(opt.IntValue())
				if v < 0 || v > 200 {
					h.reply(s, i, "default-volume must be between 0 and 200", true)
					return
				}
				set.DefaultVolume = v
			case "wait-after-empty":
				v := int(opt.IntValue())
				if v < 0 {
					h.reply(s, i, "wait-after-empty can't be negative", true)
					return
				}
				set.SecondsWaitAfterEmpty = v
			case "leave-if-no-listeners":
				set.LeaveIfNoListeners = opt.BoolValue()
			case "queue-limit":
				v := int(opt.IntValue())
				if v < 0 {
					h.reply(s, i, "queue-limit can't be negative", true)
					return
				}
				set.QueueLimit = v
			}
		}
		if err := h.repo.UpdateSettings(ctx, set); err != nil {
			h.replyErr(s, i, err)
			return
		}
		h.reply(s, i, ":gear:  |  Settings updated.\n"+formatSettings(set), true)
	}
}

func formatSettings(s *repository.Settings) string {
	leave := "no"
	if s.LeaveIfNoListeners {
		leave = "yes"
	}
	limit := "unlimited"
	if s.QueueLimit > 0 {
		limit = strconv.Itoa(s.QueueLimit)
	}
	return fmt.Sprintf(
		"default volume: %d%%\nwait after empty: %ds\nleave if no listeners: %s\nqueue limit: %s",
		s.DefaultVolume, s.SecondsWaitAfterEmpty, leave, limit)
}

// HandleMessage is the link-detection hook: a bare media URL posted in
// the bound text channel is admitted as a playback request and the
// triggering message is deleted.
func (h *CommandHandler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" || m.Author == nil || m.Author.Bot {
		return
	}
	bound, ok := h.orc.BoundChannel(m.GuildID)
	if !ok || bound != m.ChannelID {
		return
	}
	url, ok := music.DetectLink(m.Content)
	if !ok {
		return
	}

	msg := NewMessenger(s)
	track, queued, err := h.orc.Add(context.Background(), m.GuildID, m.Author.ID, url)
	if err != nil {
		if !music.IsDomainError(err) {
			slog.Error("error adding link to queue", "guildID", m.GuildID, "url", url, "err", err)
		}
		msg.Send(m.ChannelID, ":x:  |  "+errText(err))
		return
	}

	msg.DeleteMessages(m.ChannelID, []string{m.ID})
	verb := "Now playing"
	if queued {
		verb = "Queued"
	}
	msg.Send(m.ChannelID, fmt.Sprintf(":white_check_mark:  |  %s **%s** (%s) - %s",
		verb, utils.EscapeMd(track.Title), utils.PrettyTime(track.Length), m.Author.Mention()))
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	}); err != nil {
		slog.Warn("embed reply failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) replyErr(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	if !music.IsDomainError(err) {
		slog.Error("command failed", "guildID", i.GuildID, "err", err)
	}
	h.reply(s, i, errText(err), true)
}

func userInVoice(s *discordgo.Session, guildID, userID string) (channelID string, ok bool) {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		g, _ = s.Guild(guildID)
	}
	if g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}
