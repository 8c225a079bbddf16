package models

import (
	"fmt"
	"strings"
)

// TrackSet maps each present stem to its source URL.
//
// Kinds absent from the map were not produced (or not returned) and are simply not played.
type TrackSet map[Kind]string

// ParseTrackSet converts a wire-level name→URL map into a [TrackSet].
//
// Unknown names are rejected; empty URLs are dropped.
func ParseTrackSet(raw map[string]string) (TrackSet, error) {
	set := make(TrackSet, len(raw))
	for name, url := range raw {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		if url = strings.TrimSpace(url); url != "" {
			set[kind] = url
		}
	}
	return set, nil
}

// ParseTrackFlags parses "kind=url" pairs as given on the command line.
func ParseTrackFlags(pairs []string) (TrackSet, error) {
	raw := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, url, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("expected kind=url, got %q", p)
		}
		raw[name] = url
	}
	return ParseTrackSet(raw)
}

// Present reports whether kind has a URL.
func (s TrackSet) Present(kind Kind) bool {
	_, ok := s[kind]
	return ok
}

// Kinds returns the present kinds in display order.
func (s TrackSet) Kinds() []Kind {
	var kinds []Kind
	for _, k := range Kinds() {
		if s.Present(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// URLs returns the present URLs in display order.
func (s TrackSet) URLs() []string {
	urls := make([]string, 0, len(s))
	for _, k := range s.Kinds() {
		urls = append(urls, s[k])
	}
	return urls
}

// Raw converts back to the wire representation.
func (s TrackSet) Raw() map[string]string {
	raw := make(map[string]string, len(s))
	for k, url := range s {
		raw[k.String()] = url
	}
	return raw
}

// Track is one stem as shown by the player.
type Track struct {
	Kind        Kind
	URL         string
	Volume      float64 // 0.0–1.0
	Position    float64 // seconds
	Highlighted bool
}
