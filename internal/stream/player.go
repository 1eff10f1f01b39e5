package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/soundfork/melobot/internal/music"
)

const frameDuration = 20 * time.Millisecond

// Player implements the music.Player capability: one ffmpeg+opus
// pipeline per guild, paced into the guild's voice connection. The
// orchestrator guarantees at most one Play per guild is in flight.
type Player struct {
	transport *Transport

	mu         sync.Mutex
	sessions   map[string]*playSession
	onFinished func(guildID string)
}

type playSession struct {
	cancel context.CancelFunc
	pcm    *PCMStreamer
	enc    *Encoder
	doneCh chan struct{}
	notify bool // guarded by Player.mu; false suppresses the finished event
}

func NewPlayer(transport *Transport) *Player {
	return &Player{transport: transport, sessions: make(map[string]*playSession)}
}

// OnFinished registers the hook invoked when a track plays to its end
// or is skipped. Must be set before the first Play.
func (p *Player) OnFinished(fn func(guildID string)) {
	p.onFinished = fn
}

func (p *Player) Play(ctx context.Context, guildID string, track music.Track, volume float64) error {
	vc := p.transport.Connection(guildID)
	if vc == nil {
		return errors.New("not connected to voice")
	}

	p.stopSession(guildID, false)

	// The session outlives the caller; playback runs until the stream
	// ends or the session is stopped.
	playCtx, cancel := context.WithCancel(context.Background())
	pcm, err := StartPCMStream(playCtx, track.AudioURL, volume)
	if err != nil {
		cancel()
		return err
	}
	enc, err := NewEncoder()
	if err != nil {
		pcm.Close()
		cancel()
		return err
	}

	sess := &playSession{
		cancel: cancel,
		pcm:    pcm,
		enc:    enc,
		doneCh: make(chan struct{}),
		notify: true,
	}

	p.mu.Lock()
	p.sessions[guildID] = sess
	p.mu.Unlock()

	go p.sendLoop(playCtx, guildID, vc, sess)

	slog.Info("playback started", "guildID", guildID, "videoID", track.VideoID, "title", track.Title)
	return nil
}

// Stop ends playback without a finished event. cleanup additionally
// drops the voice connection.
func (p *Player) Stop(guildID string, cleanup bool) error {
	p.stopSession(guildID, false)
	if vc := p.transport.Connection(guildID); vc != nil {
		_ = vc.Speaking(false)
	}
	if cleanup {
		return p.transport.Leave(guildID)
	}
	return nil
}

// Skip cancels the current session but lets the finished event fire,
// which drives the orchestrator's advance.
func (p *Player) Skip(guildID string) error {
	p.stopSession(guildID, true)
	return nil
}

func (p *Player) stopSession(guildID string, notify bool) {
	p.mu.Lock()
	sess := p.sessions[guildID]
	if sess == nil {
		p.mu.Unlock()
		return
	}
	sess.notify = notify
	p.mu.Unlock()

	sess.cancel()
	select {
	case <-sess.doneCh:
	case <-time.After(2 * time.Second):
		slog.Warn("send loop did not stop in time", "guildID", guildID)
	}
}

func (p *Player) sendLoop(ctx context.Context, guildID string, vc *discordgo.VoiceConnection, sess *playSession) {
	defer func() {
		_ = vc.Speaking(false)
		sess.enc.Close()
		sess.pcm.Close()
		sess.cancel()
		close(sess.doneCh)
		p.finish(guildID, sess)
	}()

	_ = vc.Speaking(true)

	r := bufio.NewReaderSize(sess.pcm.Stdout(), 64*1024)
	frame := make([]byte, sess.enc.FrameBytes())
	next := time.Now()

	for {
		if _, err := io.ReadFull(r, frame); err != nil {
			if ctx.Err() == nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				slog.Warn("pcm read failed", "guildID", guildID, "err", err, "ffmpeg", sess.pcm.Err())
			}
			return
		}

		var pkt []byte
		if err := sess.enc.EncodeFrame(frame, func(b []byte) error {
			pkt = append(pkt[:0], b...)
			return nil
		}); err != nil {
			slog.Warn("opus encode failed", "guildID", guildID, "err", err)
			return
		}
		if len(pkt) == 0 {
			continue
		}

		if d := time.Until(next); d > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
		}

		select {
		case <-ctx.Done():
			return
		case vc.OpusSend <- pkt:
		case <-time.After(time.Second):
			slog.Debug("voice send stalled, dropping frame", "guildID", guildID)
		}
		next = next.Add(frameDuration)
	}
}

// finish clears the session entry and fires the finished hook when the
// track ended naturally or via skip.
func (p *Player) finish(guildID string, sess *playSession) {
	p.mu.Lock()
	notify := sess.notify && p.sessions[guildID] == sess
	if p.sessions[guildID] == sess {
		delete(p.sessions, guildID)
	}
	fn := p.onFinished
	p.mu.Unlock()

	if notify && fn != nil {
		fn(guildID)
	}
}
