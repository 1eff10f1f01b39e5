package ui

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/soundfork/melobot/internal/music"
	"github.com/soundfork/melobot/internal/utils"
)

func trackLink(t music.Track) string {
	return fmt.Sprintf("[%s](%s)", utils.EscapeMd(t.Title), t.URL)
}

func BuildPlayingEmbed(t *music.Track, queueLen int) *discordgo.MessageEmbed {
	if t == nil {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: "The queue is empty.",
			Color:       0x992222,
		}
	}
	desc := fmt.Sprintf("**%s** `[ %s ]`", trackLink(*t), utils.PrettyTime(t.Length))
	embed := &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: desc,
		Color:       0x006400,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d in queue", queueLen),
		},
	}
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	return embed
}

func BuildQueueEmbed(current *music.Track, entries []music.QueueEntry) *discordgo.MessageEmbed {
	if current == nil && len(entries) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "Queue",
			Description: "The queue is empty.",
			Color:       0x992222,
		}
	}

	desc := ""
	totalLen := 0
	if current != nil {
		desc = fmt.Sprintf("**%s** `[ %s ]`\n\n", trackLink(*current), utils.PrettyTime(current.Length))
		totalLen = current.Length
	}
	if len(entries) > 0 {
		desc += "**Up next:**\n"
		for i, e := range entries {
			desc += fmt.Sprintf("`%d.` %s `[ %s ]`\n", i+1, trackLink(e.Track), utils.PrettyTime(e.Track.Length))
			totalLen += e.Track.Length
		}
	}

	return &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: desc,
		Color:       0x006400,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: fmt.Sprint(len(entries)), Inline: true},
			{Name: "Total length", Value: utils.PrettyTime(totalLen), Inline: true},
		},
	}
}
