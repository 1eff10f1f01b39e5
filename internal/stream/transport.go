package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/soundfork/melobot/internal/music"
)

// Transport implements music.Transport over a discordgo session.
type Transport struct {
	s *discordgo.Session

	mu    sync.Mutex
	conns map[string]*discordgo.VoiceConnection
}

func NewTransport(s *discordgo.Session) *Transport {
	return &Transport{s: s, conns: make(map[string]*discordgo.VoiceConnection)}
}

func (t *Transport) Join(ctx context.Context, guildID, channelID string) (any, error) {
	t.mu.Lock()
	if vc, ok := t.conns[guildID]; ok && vc.ChannelID == channelID {
		t.mu.Unlock()
		return vc, nil
	}
	t.mu.Unlock()

	vc, err := t.s.ChannelVoiceJoin(ctx, guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	// Kill() closes these; make sure they exist so it cannot panic.
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}

	t.mu.Lock()
	t.conns[guildID] = vc
	t.mu.Unlock()
	return vc, nil
}

func (t *Transport) Leave(guildID string) error {
	t.mu.Lock()
	vc := t.conns[guildID]
	delete(t.conns, guildID)
	t.mu.Unlock()

	if vc == nil {
		return nil
	}
	return t.safeDisconnect(guildID, vc)
}

func (t *Transport) safeDisconnect(guildID string, vc *discordgo.VoiceConnection) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("voice disconnect panic recovered", "panic", r, "guildID", guildID)
		}
	}()

	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}

	_ = vc.Speaking(false)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return vc.Disconnect(ctx)
}

// Connection returns the live voice connection for a guild, if any.
func (t *Transport) Connection(guildID string) *discordgo.VoiceConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[guildID]
}

// Listeners reports the members of the voice channel the bot occupies.
func (t *Transport) Listeners(guildID string) []music.Listener {
	t.mu.Lock()
	vc := t.conns[guildID]
	t.mu.Unlock()
	if vc == nil {
		return nil
	}
	channelID := vc.ChannelID

	g, _ := t.s.State.Guild(guildID)
	if g == nil {
		return nil
	}
	var out []music.Listener
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		l := music.Listener{ID: vs.UserID, Deaf: vs.Deaf || vs.SelfDeaf}
		if m, _ := t.s.State.Member(guildID, vs.UserID); m != nil && m.User != nil {
			l.Bot = m.User.Bot
		}
		out = append(out, l)
	}
	return out
}

func (t *Transport) HasVoicePermissions(guildID, channelID string) bool {
	me := t.s.State.User
	if me == nil {
		return false
	}
	perms, err := t.s.State.UserChannelPermissions(me.ID, channelID)
	if err != nil {
		// state gaps are not a reason to refuse; the join will tell
		slog.Debug("permission lookup failed", "guildID", guildID, "channelID", channelID, "err", err)
		return true
	}
	need := int64(discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak)
	return perms&need == need
}
