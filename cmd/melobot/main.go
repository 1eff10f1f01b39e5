package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/soundfork/melobot/internal/config"
	"github.com/soundfork/melobot/internal/handlers"
	"github.com/soundfork/melobot/internal/repository"
	"github.com/soundfork/melobot/internal/resolver"
	"github.com/soundfork/melobot/internal/spotify"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	db, err := repository.OpenDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	repo := repository.NewRepo(db)

	extractor := resolver.NewYTDLP()
	res := resolver.New(extractor, repository.NewTrackStore(repo)).
		WithLimits(cfg.MaxTrackSeconds, cfg.CacheTTL)

	var sp *spotify.Client
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		sp, err = spotify.NewClientCredentials(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		if err != nil {
			log.Fatal(err)
		}
	}
	expand := resolver.NewQueryExpander(sp, extractor, cfg.PlaylistLimit)

	bot := handlers.NewBot(cfg, repo, res, expand)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
