package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/soundfork/melobot/internal/music"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertSettings(ctx context.Context, guild string) (*Settings, error) {
	_, _ = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id) VALUES (?)`, guild,
	)
	return r.GetSettings(ctx, guild)
}

func (r *Repo) GetSettings(ctx context.Context, guild string) (*Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, default_volume, seconds_wait_after_empty, leave_if_no_listeners, queue_limit
	FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	var leave int
	if err := row.Scan(
		&s.GuildID,
		&s.DefaultVolume,
		&s.SecondsWaitAfterEmpty,
		&leave,
		&s.QueueLimit,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	s.LeaveIfNoListeners = leave != 0
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE settings SET
		  default_volume=?,
		  seconds_wait_after_empty=?,
		  leave_if_no_listeners=?,
		  queue_limit=?
		WHERE guild_id=?`,
		s.DefaultVolume, s.SecondsWaitAfterEmpty, boolToInt(s.LeaveIfNoListeners),
		s.QueueLimit, s.GuildID,
	)
	return err
}

// GuildSettings implements music.SettingsSource, creating a default row
// on first touch.
func (r *Repo) GuildSettings(ctx context.Context, guildID string) (music.Settings, error) {
	s, err := r.UpsertSettings(ctx, guildID)
	if err != nil {
		return music.Settings{}, err
	}
	return music.Settings{
		QueueLimit:            s.QueueLimit,
		SecondsWaitAfterEmpty: s.SecondsWaitAfterEmpty,
		LeaveIfNoListeners:    s.LeaveIfNoListeners,
		DefaultVolume:         s.DefaultVolume,
	}, nil
}

func (r *Repo) CacheGet(ctx context.Context, fingerprint string) (*music.Track, bool, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT video_id, title, thumbnail, page_url, audio_url, audio_codec, itag, length, stream_expires_at, evict_at
	FROM track_cache WHERE fingerprint = ?`, fingerprint)

	var t music.Track
	var streamExp, evictAt int64
	if err := row.Scan(
		&t.VideoID, &t.Title, &t.Thumbnail, &t.URL, &t.AudioURL,
		&t.AudioCodec, &t.Itag, &t.Length, &streamExp, &evictAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if time.Now().Unix() >= evictAt {
		_, _ = r.db.ExecContext(ctx, `DELETE FROM track_cache WHERE fingerprint=?`, fingerprint)
		return nil, false, nil
	}
	if streamExp > 0 {
		t.ExpiresAt = time.Unix(streamExp, 0)
	}
	return &t, true, nil
}

func (r *Repo) CachePut(ctx context.Context, fingerprint string, t *music.Track, evictAt time.Time) error {
	var streamExp int64
	if !t.ExpiresAt.IsZero() {
		streamExp = t.ExpiresAt.Unix()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO track_cache
		(fingerprint, video_id, title, thumbnail, page_url, audio_url, audio_codec, itag, length, stream_expires_at, evict_at, cached_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		fingerprint, t.VideoID, t.Title, t.Thumbnail, t.URL, t.AudioURL,
		t.AudioCodec, t.Itag, t.Length, streamExp, evictAt.Unix(), time.Now().Unix(),
	)
	return err
}

func (r *Repo) CachePurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM track_cache WHERE evict_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
