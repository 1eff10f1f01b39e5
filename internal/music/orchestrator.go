package music

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
	StateStopping
)

// SkipOutcome is the result of a skip request.
type SkipOutcome int

const (
	SkipDone SkipOutcome = iota
	SkipVotePending
	SkipAlreadyVoted
)

const defaultVolume = 2.0 // percent 100 * 2 / 100

// session holds the mutable per-guild playback state. All state
// transitions for a guild happen under sess.mu, held across the
// blocking resolve and player calls so that two concurrent adds can
// never both observe "not playing".
type session struct {
	mu      sync.Mutex
	state   State
	volume  float64 // 0 = unset, fall back to guild default
	current *Track

	idleTimer *time.Timer

	// cancelMu guards resolveCancel so a stop can abort an in-flight
	// resolution without waiting on sess.mu.
	cancelMu      sync.Mutex
	resolveCancel context.CancelFunc
}

func (s *session) setResolveCancel(fn context.CancelFunc) {
	s.cancelMu.Lock()
	s.resolveCancel = fn
	s.cancelMu.Unlock()
}

func (s *session) abortResolve() {
	s.cancelMu.Lock()
	if s.resolveCancel != nil {
		s.resolveCancel()
		s.resolveCancel = nil
	}
	s.cancelMu.Unlock()
}

func (s *session) cancelIdleLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// Orchestrator ties the registry, queue, vote ledger and resolver to
// the external player/transport capabilities. Guilds are processed
// independently; within one guild every operation is serialized.
type Orchestrator struct {
	registry *Registry
	queue    *Queue
	votes    *VoteLedger

	player    Player
	transport Transport
	msg       Messenger
	resolver  TrackResolver
	settings  SettingsSource

	mu       sync.Mutex
	sessions map[string]*session
}

func NewOrchestrator(
	player Player,
	transport Transport,
	msg Messenger,
	resolver TrackResolver,
	settings SettingsSource,
) *Orchestrator {
	return &Orchestrator{
		registry:  NewRegistry(),
		queue:     NewQueue(),
		votes:     NewVoteLedger(),
		player:    player,
		transport: transport,
		msg:       msg,
		resolver:  resolver,
		settings:  settings,
		sessions:  make(map[string]*session),
	}
}

func (o *Orchestrator) session(guildID string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[guildID]
	if !ok {
		s = &session{}
		o.sessions[guildID] = s
	}
	return s
}

// BoundChannel returns the text channel bound for status messages.
func (o *Orchestrator) BoundChannel(guildID string) (string, bool) {
	return o.registry.Binding(guildID)
}

func (o *Orchestrator) QueueLength(guildID string) int {
	return o.queue.Length(guildID)
}

func (o *Orchestrator) QueueSnapshot(guildID string) []QueueEntry {
	return o.queue.Snapshot(guildID)
}

// Current returns the active track and the guild's state.
func (o *Orchestrator) Current(guildID string) (*Track, State) {
	sess := o.session(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.current, sess.state
}

// Connect binds the text channel and joins the voice channel. The
// binding is recorded before the join attempt; a join failure rolls
// it back so a failed summon can be retried elsewhere.
func (o *Orchestrator) Connect(ctx context.Context, guildID, voiceChannelID, textChannelID string) error {
	if guildID == "" || voiceChannelID == "" || textChannelID == "" {
		return ErrNotAChannel
	}
	sess := o.session(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := o.registry.Bind(guildID, textChannelID); err != nil {
		return err
	}
	if !o.transport.HasVoicePermissions(guildID, voiceChannelID) {
		return ErrNoPermission
	}

	sess.state = StateConnecting
	handle, err := o.transport.Join(ctx, guildID, voiceChannelID)
	if err != nil {
		o.registry.Unbind(guildID)
		sess.state = StateIdle
		slog.Error("voice join failed",
			"guildID", guildID, "channelID", voiceChannelID, "err", err)
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	o.registry.SetTransport(guildID, handle)
	sess.state = StateIdle
	sess.cancelIdleLocked()
	return nil
}

// Add admits a playback request. When the guild is idle the track
// starts immediately; when busy it is appended to the queue. The
// returned bool reports whether the track was queued.
func (o *Orchestrator) Add(ctx context.Context, guildID, requesterID, rawURL string) (*Track, bool, error) {
	url, err := normalizeURL(rawURL)
	if err != nil {
		return nil, false, err
	}

	sess := o.session(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	track, err := o.resolveCancelable(ctx, sess, url)
	if err != nil {
		return nil, false, err
	}

	set := o.guildSettings(ctx, guildID)

	if sess.state == StatePlaying {
		entry := QueueEntry{Track: *track, RequestedBy: requesterID, EnqueuedAt: time.Now()}
		if err := o.queue.Enqueue(guildID, entry, set.QueueLimit); err != nil {
			return nil, false, err
		}
		return track, true, nil
	}

	if err := o.player.Play(ctx, guildID, *track, sess.volumeOrDefault(set)); err != nil {
		return nil, false, err
	}
	sess.state = StatePlaying
	sess.current = track
	sess.cancelIdleLocked()
	o.votes.Clear(guildID)
	return track, false, nil
}

// Advance reacts to the player's "track finished" signal: pop the
// queue, refresh the stream URL, hand the next track to the player.
// Background path, so failed entries are skipped rather than surfaced.
func (o *Orchestrator) Advance(guildID string) {
	sess := o.session(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	o.advanceLocked(context.Background(), guildID, sess)
}

func (o *Orchestrator) advanceLocked(ctx context.Context, guildID string, sess *session) {
	o.votes.Clear(guildID)
	sess.current = nil

	set := o.guildSettings(ctx, guildID)

	if set.LeaveIfNoListeners && o.botAlone(guildID) {
		sess.state = StateStopping
		o.queue.Clear(guildID)
		if err := o.player.Stop(guildID, true); err != nil {
			slog.Warn("stop after room emptied failed", "guildID", guildID, "err", err)
		}
		sess.state = StateIdle
		return
	}

	for {
		entry, ok := o.queue.DequeueFront(guildID)
		if !ok {
			if ch, bound := o.registry.Binding(guildID); bound {
				o.msg.Send(ch, ":information_source:  |  Queue finished.")
			}
			if err := o.player.Stop(guildID, false); err != nil {
				slog.Warn("stop on empty queue failed", "guildID", guildID, "err", err)
			}
			sess.state = StateIdle
			o.scheduleIdleLeaveLocked(guildID, sess, set)
			return
		}

		// Stream URLs expire; always refresh before handing to the player.
		track, err := o.resolveCancelable(ctx, sess, entry.Track.URL)
		if err != nil {
			slog.Debug("skipping unplayable queue entry",
				"guildID", guildID, "url", entry.Track.URL, "err", err)
			continue
		}
		if err := o.player.Play(ctx, guildID, *track, sess.volumeOrDefault(set)); err != nil {
			slog.Warn("player rejected next track",
				"guildID", guildID, "url", track.URL, "err", err)
			continue
		}
		sess.state = StatePlaying
		sess.current = track
		return
	}
}

// Skip routes through the vote ledger unless forced or the room has at
// most two listeners. State remains Playing until the finished signal
// drives Advance.
func (o *Orchestrator) Skip(guildID, requesterID string, force bool) (SkipOutcome, error) {
	sess := o.session(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, bound := o.registry.Binding(guildID); !bound {
		return SkipDone, ErrNotInChannel
	}

	listeners := o.transport.Listeners(guildID)
	if !force && len(listeners) > 2 {
		eligible := 0
		for _, l := range listeners {
			if !l.Bot && !l.Deaf {
				eligible++
			}
		}
		switch o.votes.Cast(guildID, requesterID, eligible) {
		case VoteDuplicate:
			return SkipAlreadyVoted, nil
		case VotePending:
			return SkipVotePending, nil
		case VoteQuorum:
			// fall through to the player
		}
	} else {
		o.votes.Clear(guildID)
	}

	if err := o.player.Skip(guildID); err != nil {
		return SkipDone, err
	}
	return SkipDone, nil
}

// SetVolume stores percent*2/100 for the guild. The player clamps to
// its accepted range.
func (o *Orchestrator) SetVolume(guildID string, percent int) {
	sess := o.session(guildID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.volume = float64(percent) * 2 / 100
}

// OnListenersChanged handles a membership event. When the bot is the
// sole remaining listener playback is force-stopped, unless the guild
// disabled leave-if-no-listeners; the text channel binding stays so
// follow-up messages still have a home.
func (o *Orchestrator) OnListenersChanged(guildID string) {
	if !o.botAlone(guildID) {
		return
	}
	if !o.guildSettings(context.Background(), guildID).LeaveIfNoListeners {
		return
	}
	sess := o.session(guildID)
	sess.abortResolve()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !o.botAlone(guildID) {
		return
	}
	sess.state = StateStopping
	if ch, bound := o.registry.Binding(guildID); bound {
		o.msg.Send(ch, ":headphones:  |  Everyone left, stopping playback.")
	}
	o.queue.Clear(guildID)
	o.votes.Clear(guildID)
	sess.current = nil
	if err := o.player.Stop(guildID, true); err != nil {
		slog.Warn("force stop failed", "guildID", guildID, "err", err)
	}
	sess.state = StateIdle
}

// Stop ends playback and clears the queue on user request.
func (o *Orchestrator) Stop(guildID string) error {
	sess := o.session(guildID)
	sess.abortResolve()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, bound := o.registry.Binding(guildID); !bound {
		return ErrNotInChannel
	}

	sess.state = StateStopping
	o.queue.Clear(guildID)
	o.votes.Clear(guildID)
	sess.current = nil
	err := o.player.Stop(guildID, false)
	sess.state = StateIdle
	return err
}

// Disconnect tears the guild session down completely.
func (o *Orchestrator) Disconnect(guildID string) {
	sess := o.session(guildID)
	sess.abortResolve()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	o.teardownLocked(guildID, sess)
}

func (o *Orchestrator) teardownLocked(guildID string, sess *session) {
	sess.state = StateStopping
	o.queue.Clear(guildID)
	o.votes.Clear(guildID)
	sess.current = nil
	sess.cancelIdleLocked()
	if err := o.player.Stop(guildID, true); err != nil {
		slog.Debug("stop during teardown", "guildID", guildID, "err", err)
	}
	if err := o.transport.Leave(guildID); err != nil {
		slog.Debug("leave during teardown", "guildID", guildID, "err", err)
	}
	o.registry.SetTransport(guildID, nil)
	o.registry.Unbind(guildID)
	sess.state = StateIdle
}

func (o *Orchestrator) scheduleIdleLeaveLocked(guildID string, sess *session, set Settings) {
	if set.SecondsWaitAfterEmpty <= 0 {
		return
	}
	sess.cancelIdleLocked()
	wait := time.Duration(set.SecondsWaitAfterEmpty) * time.Second
	sess.idleTimer = time.AfterFunc(wait, func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.state != StateIdle || o.queue.Length(guildID) > 0 {
			return
		}
		o.teardownLocked(guildID, sess)
	})
}

func (o *Orchestrator) resolveCancelable(ctx context.Context, sess *session, url string) (*Track, error) {
	rctx, cancel := context.WithCancel(ctx)
	sess.setResolveCancel(cancel)
	track, err := o.resolver.Resolve(rctx, url)
	sess.setResolveCancel(nil)
	cancel()
	if err != nil {
		return nil, err
	}
	return track, nil
}

func (o *Orchestrator) botAlone(guildID string) bool {
	listeners := o.transport.Listeners(guildID)
	return len(listeners) == 1 && listeners[0].Bot
}

func (o *Orchestrator) guildSettings(ctx context.Context, guildID string) Settings {
	// Absent or unreadable settings match the row the repository would
	// create: disconnect from emptied rooms, everything else zero.
	def := Settings{LeaveIfNoListeners: true}
	if o.settings == nil {
		return def
	}
	set, err := o.settings.GuildSettings(ctx, guildID)
	if err != nil {
		slog.Warn("loading guild settings failed", "guildID", guildID, "err", err)
		return def
	}
	return set
}

func (s *session) volumeOrDefault(set Settings) float64 {
	if s.volume > 0 {
		return s.volume
	}
	if set.DefaultVolume > 0 {
		return float64(set.DefaultVolume) * 2 / 100
	}
	return defaultVolume
}

var linkRe = regexp.MustCompile(`^<?(https?://(?:www\.)?youtu(?:be\.com/watch\?v=|\.be/)[\w\-]+(?:[&?][\w=&\-]*)?)>?$`)

// DetectLink reports whether a chat message is a bare recognized media
// URL, returning the URL with any angle-bracket wrapping stripped.
func DetectLink(content string) (string, bool) {
	m := linkRe.FindStringSubmatch(strings.TrimSpace(content))
	if m == nil {
		return "", false
	}
	return m[1], true
}

func normalizeURL(raw string) (string, error) {
	url := strings.TrimSpace(raw)
	url = strings.TrimPrefix(url, "<")
	url = strings.TrimSuffix(url, ">")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", ErrInvalidInput
	}
	return url, nil
}
