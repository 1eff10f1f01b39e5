package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/soundfork/melobot/internal/config"
	"github.com/soundfork/melobot/internal/music"
	"github.com/soundfork/melobot/internal/repository"
	"github.com/soundfork/melobot/internal/resolver"
	"github.com/soundfork/melobot/internal/stream"
)

type Bot struct {
	cfg    *config.Config
	repo   *repository.Repo
	res    music.TrackResolver
	expand *resolver.QueryExpander
}

func NewBot(cfg *config.Config, repo *repository.Repo, res music.TrackResolver, expand *resolver.QueryExpander) *Bot {
	return &Bot{cfg: cfg, repo: repo, res: res, expand: expand}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	transport := stream.NewTransport(dg)
	player := stream.NewPlayer(transport)
	msg := NewMessenger(dg)
	orc := music.NewOrchestrator(player, transport, msg, b.res, b.repo)
	player.OnFinished(orc.Advance)
	cmd := NewCommandHandler(b.cfg, orc, b.expand, b.repo)

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username)
		if err := cmd.RegisterCommands(s, s.State.User.ID); err != nil {
			slog.Error("register commands", "err", err)
		}
		status := discordgo.UpdateStatusData{Status: b.cfg.BotStatus}
		if b.cfg.BotActivity != "" {
			status.Activities = []*discordgo.Activity{
				{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening},
			}
		}
		if err := s.UpdateStatusComplex(status); err != nil {
			slog.Debug("set presence", "err", err)
		}
	})

	dg.AddHandler(cmd.HandleInteraction)
	dg.AddHandler(cmd.HandleMessage)

	// Membership changes feed the idle-shutdown check.
	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs.GuildID == "" {
			return
		}
		go orc.OnListenersChanged(vs.GuildID)
	})

	go b.purgeCacheLoop(ctx)

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	return nil
}

// purgeCacheLoop drops expired track-cache rows once an hour so the
// database doesn't accumulate stale stream URLs forever.
func (b *Bot) purgeCacheLoop(ctx context.Context) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := b.repo.CachePurgeExpired(ctx)
			if err != nil {
				slog.Debug("cache purge failed", "err", err)
			} else if n > 0 {
				slog.Debug("purged expired cache rows", "rows", n)
			}
		}
	}
}
