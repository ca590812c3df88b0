package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

const (
	moodColumns = "id, created_at, mood, features, tracks, audio_features_map, evaluation"
	songColumns = "id, created_at, source_track, source_artist, source_track_id, source_features, " +
		"source_audio_features, similar_tracks, mood_description"
)

func (a *Adapter) InsertMoodSearch(ctx context.Context, rec domain.MoodSearch) (domain.HistoryEntry, error) {
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "encode features", Err: err}
	}
	tracks, err := encodeTracks(rec.Tracks)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	audio, err := encodeOptional(rec.AudioFeatures, len(rec.AudioFeatures) > 0)
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "encode audio features", Err: err}
	}
	evaluation, err := encodeOptional(rec.Evaluation, rec.Evaluation != nil)
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "encode evaluation", Err: err}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.nextTimestamp()
	res, err := a.db.ExecContext(ctx, `
		INSERT INTO search_history (created_at, mood, features, tracks, audio_features_map, evaluation)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ts, rec.Mood, string(features), tracks, audio, evaluation)
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "insert mood search", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "insert mood search", Err: err}
	}

	if rec.Tracks == nil {
		rec.Tracks = []domain.Track{}
	}
	if rec.AudioFeatures == nil {
		rec.AudioFeatures = map[string]domain.AudioFeatures{}
	}
	return domain.HistoryEntry{ID: id, Kind: domain.KindMood, CreatedAt: fromUnixNano(ts), Mood: &rec}, nil
}

func (a *Adapter) InsertSongDiscovery(ctx context.Context, rec domain.SongDiscovery) (domain.HistoryEntry, error) {
	sourceFeatures, err := encodeOptional(rec.SourceFeatures, rec.SourceFeatures != nil)
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "encode source features", Err: err}
	}
	sourceAudio, err := encodeOptional(rec.SourceAudioFeatures, rec.SourceAudioFeatures != nil)
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "encode source audio features", Err: err}
	}
	similar, err := encodeTracks(rec.SimilarTracks)
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.nextTimestamp()
	res, err := a.db.ExecContext(ctx, `
		INSERT INTO song_discovery_history (
			created_at, source_track, source_artist, source_track_id,
			source_features, source_audio_features, similar_tracks, mood_description
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ts, rec.SourceTrack, rec.SourceArtist, rec.SourceTrackID, sourceFeatures, sourceAudio, similar, rec.MoodDescription)
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "insert song discovery", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "insert song discovery", Err: err}
	}

	if rec.SimilarTracks == nil {
		rec.SimilarTracks = []domain.Track{}
	}
	return domain.HistoryEntry{ID: id, Kind: domain.KindSong, CreatedAt: fromUnixNano(ts), Discovery: &rec}, nil
}

// List returns entries of one kind, newest first. A limit of 0 returns every entry.
func (a *Adapter) List(ctx context.Context, kind domain.HistoryKind, limit int) ([]domain.HistoryEntry, error) {
	switch kind {
	case domain.KindMood:
		return a.listMoods(ctx, limit)
	case domain.KindSong:
		return a.listSongs(ctx, limit)
	default:
		return nil, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown history kind %q", kind)}
	}
}

// ListCombined merges both kinds by timestamp, newest first; ties fall back to id and then kind.
func (a *Adapter) ListCombined(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	moods, err := a.listMoods(ctx, limit)
	if err != nil {
		return nil, err
	}
	songs, err := a.listSongs(ctx, limit)
	if err != nil {
		return nil, err
	}

	combined := append(moods, songs...)
	slices.SortFunc(combined, func(x, y domain.HistoryEntry) int {
		if c := y.CreatedAt.Compare(x.CreatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(y.ID, x.ID); c != 0 {
			return c
		}
		return cmp.Compare(x.Kind, y.Kind)
	})
	if limit > 0 && len(combined) > limit {
		combined = combined[:limit]
	}
	return combined, nil
}

func (a *Adapter) Get(ctx context.Context, kind domain.HistoryKind, id int64) (domain.HistoryEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch kind {
	case domain.KindMood:
		rows, err = a.db.QueryContext(ctx, "SELECT "+moodColumns+" FROM search_history WHERE id = ?", id)
	case domain.KindSong:
		rows, err = a.db.QueryContext(ctx, "SELECT "+songColumns+" FROM song_discovery_history WHERE id = ?", id)
	default:
		return domain.HistoryEntry{}, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown history kind %q", kind)}
	}
	if err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "get " + string(kind), Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.HistoryEntry{}, &domain.PersistenceError{Op: "get " + string(kind), Err: err}
		}
		return domain.HistoryEntry{}, fmt.Errorf("sqlite: %s entry %d: %w", kind, id, domain.ErrNotFound)
	}
	if kind == domain.KindMood {
		return scanMood(rows)
	}
	return scanSong(rows)
}

// Count returns the number of entries of kind; domain.KindAll counts both tables.
func (a *Adapter) Count(ctx context.Context, kind domain.HistoryKind) (int64, error) {
	var query string
	switch kind {
	case domain.KindMood:
		query = "SELECT COUNT(*) FROM search_history"
	case domain.KindSong:
		query = "SELECT COUNT(*) FROM song_discovery_history"
	case domain.KindAll:
		query = "SELECT (SELECT COUNT(*) FROM search_history) + (SELECT COUNT(*) FROM song_discovery_history)"
	default:
		return 0, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown history kind %q", kind)}
	}

	var n int64
	if err := a.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, &domain.PersistenceError{Op: "count " + string(kind), Err: err}
	}
	return n, nil
}

// RecentMoods returns up to n mood texts, newest first.
func (a *Adapter) RecentMoods(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	rows, err := a.db.QueryContext(ctx, "SELECT mood FROM search_history ORDER BY created_at DESC, id DESC LIMIT ?", n)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "recent moods", Err: err}
	}
	defer rows.Close()

	moods := []string{}
	for rows.Next() {
		var mood string
		if err := rows.Scan(&mood); err != nil {
			return nil, &domain.PersistenceError{Op: "recent moods", Err: err}
		}
		moods = append(moods, mood)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "recent moods", Err: err}
	}
	return moods, nil
}

// ClearAll deletes both kinds in one transaction and returns the number of removed entries.
func (a *Adapter) ClearAll(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "clear history", Err: err}
	}
	defer tx.Rollback() // no-op after commit

	var total int64
	for _, table := range []string{"search_history", "song_discovery_history"} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return 0, &domain.PersistenceError{Op: "clear " + table, Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, &domain.PersistenceError{Op: "clear " + table, Err: err}
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, &domain.PersistenceError{Op: "clear history", Err: err}
	}
	return total, nil
}

func (a *Adapter) listMoods(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT "+moodColumns+" FROM search_history ORDER BY created_at DESC, id DESC LIMIT ?", sqlLimit(limit))
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list mood searches", Err: err}
	}
	defer rows.Close()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		entry, err := scanMood(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list mood searches", Err: err}
	}
	return entries, nil
}

func (a *Adapter) listSongs(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT "+songColumns+" FROM song_discovery_history ORDER BY created_at DESC, id DESC LIMIT ?", sqlLimit(limit))
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list song discoveries", Err: err}
	}
	defer rows.Close()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		entry, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list song discoveries", Err: err}
	}
	return entries, nil
}

func scanMood(rows *sql.Rows) (domain.HistoryEntry, error) {
	var (
		id                int64
		ts                int64
		rec               domain.MoodSearch
		features, tracks  string
		audio, evaluation sql.NullString
	)
	if err := rows.Scan(&id, &ts, &rec.Mood, &features, &tracks, &audio, &evaluation); err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "scan mood search", Err: err}
	}
	if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "decode features", Err: err}
	}
	if err := json.Unmarshal([]byte(tracks), &rec.Tracks); err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "decode tracks", Err: err}
	}
	rec.AudioFeatures = map[string]domain.AudioFeatures{}
	if audio.Valid && audio.String != "" {
		if err := json.Unmarshal([]byte(audio.String), &rec.AudioFeatures); err != nil {
			return domain.HistoryEntry{}, &domain.PersistenceError{Op: "decode audio features", Err: err}
		}
	}
	if evaluation.Valid && evaluation.String != "" {
		rec.Evaluation = &domain.Evaluation{}
		if err := json.Unmarshal([]byte(evaluation.String), rec.Evaluation); err != nil {
			return domain.HistoryEntry{}, &domain.PersistenceError{Op: "decode evaluation", Err: err}
		}
	}
	if rec.Tracks == nil {
		rec.Tracks = []domain.Track{}
	}
	return domain.HistoryEntry{ID: id, Kind: domain.KindMood, CreatedAt: fromUnixNano(ts), Mood: &rec}, nil
}

func scanSong(rows *sql.Rows) (domain.HistoryEntry, error) {
	var (
		id                          int64
		ts                          int64
		rec                         domain.SongDiscovery
		sourceFeatures, sourceAudio sql.NullString
		similar                     string
		description                 sql.NullString
	)
	if err := rows.Scan(&id, &ts, &rec.SourceTrack, &rec.SourceArtist, &rec.SourceTrackID,
		&sourceFeatures, &sourceAudio, &similar, &description); err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "scan song discovery", Err: err}
	}
	if sourceFeatures.Valid && sourceFeatures.String != "" {
		rec.SourceFeatures = &domain.FeatureVector{}
		if err := json.Unmarshal([]byte(sourceFeatures.String), rec.SourceFeatures); err != nil {
			return domain.HistoryEntry{}, &domain.PersistenceError{Op: "decode source features", Err: err}
		}
	}
	if sourceAudio.Valid && sourceAudio.String != "" {
		rec.SourceAudioFeatures = &domain.AudioFeatures{}
		if err := json.Unmarshal([]byte(sourceAudio.String), rec.SourceAudioFeatures); err != nil {
			return domain.HistoryEntry{}, &domain.PersistenceError{Op: "decode source audio features", Err: err}
		}
	}
	if err := json.Unmarshal([]byte(similar), &rec.SimilarTracks); err != nil {
		return domain.HistoryEntry{}, &domain.PersistenceError{Op: "decode similar tracks", Err: err}
	}
	if rec.SimilarTracks == nil {
		rec.SimilarTracks = []domain.Track{}
	}
	rec.MoodDescription = description.String
	return domain.HistoryEntry{ID: id, Kind: domain.KindSong, CreatedAt: fromUnixNano(ts), Discovery: &rec}, nil
}

func encodeTracks(tracks []domain.Track) (string, error) {
	if tracks == nil {
		tracks = []domain.Track{}
	}
	b, err := json.Marshal(tracks)
	if err != nil {
		return "", &domain.PersistenceError{Op: "encode tracks", Err: err}
	}
	return string(b), nil
}

// encodeOptional marshals v when present is true and stores NULL otherwise.
func encodeOptional(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// sqlLimit maps 0 (no limit) onto SQLite's negative LIMIT.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func fromUnixNano(ts int64) time.Time {
	return time.Unix(0, ts).UTC()
}
