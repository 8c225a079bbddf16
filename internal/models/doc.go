// Package models defines the domain types shared by the stemx client.
//
// The package contains two categories of types:
//
// 1. Value types describing a separation result
//   - [Kind] : the closed set of stems the backend produces (vocals, drums, bass, other)
//   - [TrackSet] : stem source URLs keyed by [Kind], parsed once at the backend boundary
//   - [Track] : one stem's playback view (URL, volume, highlight)
//
// 2. Persistent entities
//   - [SessionRecord] : a separation job kept in history until its server files are deleted
//
// Persistent entities implement the [Model] interface; the [Repository] interface defines standard CRUD operations for database access.
package models
