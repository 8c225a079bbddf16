package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionRecord is a separation job kept in local history.
//
// DeletedAt stays nil until the backend confirmed deletion of the job's files.
type SessionRecord struct {
	id        string
	sequence  int
	source    string
	tracks    TrackSet
	cacheDir  string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewSessionRecord creates a record for the session id produced from source.
func NewSessionRecord(id, source string, tracks TrackSet) *SessionRecord {
	now := time.Now()
	return &SessionRecord{
		id:        id,
		source:    source,
		tracks:    tracks,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreSessionRecord rebuilds a record from stored columns.
func RestoreSessionRecord(id string, sequence int, source string, tracks TrackSet, cacheDir string, createdAt, updatedAt time.Time, deletedAt *time.Time) *SessionRecord {
	return &SessionRecord{
		id:        id,
		sequence:  sequence,
		source:    source,
		tracks:    tracks,
		cacheDir:  cacheDir,
		createdAt: createdAt,
		updatedAt: updatedAt,
		deletedAt: deletedAt,
	}
}

func (s *SessionRecord) ID() string            { return s.id }
func (s *SessionRecord) Sequence() int         { return s.sequence }
func (s *SessionRecord) Source() string        { return s.source }
func (s *SessionRecord) Tracks() TrackSet      { return s.tracks }
func (s *SessionRecord) CacheDir() string      { return s.cacheDir }
func (s *SessionRecord) CreatedAt() time.Time  { return s.createdAt }
func (s *SessionRecord) UpdatedAt() time.Time  { return s.updatedAt }
func (s *SessionRecord) DeletedAt() *time.Time { return s.deletedAt }
func (s *SessionRecord) Deleted() bool         { return s.deletedAt != nil }

func (s *SessionRecord) SetSequence(seq int)       { s.sequence = seq }
func (s *SessionRecord) SetCacheDir(dir string)    { s.cacheDir = dir }
func (s *SessionRecord) SetUpdatedAt(t time.Time)  { s.updatedAt = t }
func (s *SessionRecord) SetDeletedAt(t *time.Time) { s.deletedAt = t }
func (s *SessionRecord) SetTracks(tracks TrackSet) { s.tracks = tracks }

// Validate checks the record can be persisted.
func (s *SessionRecord) Validate() error {
	if s.id == "" {
		return fmt.Errorf("session id is required")
	}
	if s.source == "" {
		return fmt.Errorf("session source is required")
	}
	if len(s.tracks) == 0 {
		return fmt.Errorf("session %s has no tracks", s.id)
	}
	return nil
}

// TracksJSON encodes the track set for storage.
func (s *SessionRecord) TracksJSON() (string, error) {
	b, err := json.Marshal(s.tracks.Raw())
	if err != nil {
		return "", fmt.Errorf("failed to encode tracks: %w", err)
	}
	return string(b), nil
}

// DecodeTracks parses a stored track set.
func DecodeTracks(data string) (TrackSet, error) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode tracks: %w", err)
	}
	return ParseTrackSet(raw)
}

var _ Model = (*SessionRecord)(nil)
