// Package ui implements the interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI moves through three views:
//  1. [FormView] : file path and URL inputs, enter submits
//  2. [ProcessingView] : spinner, status line and stem fetch progress while the backend works
//  3. [PlayerView] : one row per stem with a volume bar, highlighted while playing, and the shared transport
//
// The (view) [Model] drives an [upload.Controller] whose View calls arrive as [Msg] values on a channel,
// so status changes and the revealed session are handled like any other message. While a session is playing
// a ticker refreshes its snapshot, which keeps the playhead and highlighting current.
//
// Quitting tears the session down, which releases the audio and deletes the server-side files.
package ui
