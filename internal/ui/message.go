package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stemx/internal/player"
	"github.com/desertthunder/stemx/internal/tasks"
	"github.com/desertthunder/stemx/internal/upload"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStatus MsgKind = iota
	MsgHidePlayer
	MsgShowPlayer
	MsgSubmitDone
	MsgProgressUpdate
	MsgTick
	MsgNotice
)

type statusData struct {
	status  upload.Status
	message string
}

// statusMsg is the constructor for [MsgStatus]
func statusMsg(status upload.Status, message string) Msg {
	return Msg{kind: MsgStatus, data: statusData{status, message}}
}

// hidePlayerMsg is the constructor for [MsgHidePlayer]
func hidePlayerMsg() Msg {
	return Msg{kind: MsgHidePlayer}
}

// showPlayerMsg is the constructor for [MsgShowPlayer]
func showPlayerMsg(s *player.Session) Msg {
	return Msg{kind: MsgShowPlayer, data: s}
}

// submitDoneMsg is the constructor for [MsgSubmitDone]
func submitDoneMsg(err error) Msg {
	return Msg{kind: MsgSubmitDone, data: err}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// noticeMsg is the constructor for [MsgNotice], a transient line under the player
func noticeMsg(text string, err error) Msg {
	return Msg{
		kind: MsgNotice,
		data: struct {
			text string
			err  error
		}{text, err},
	}
}
