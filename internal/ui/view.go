package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stemx/internal/player"
	"github.com/desertthunder/stemx/internal/upload"
)

// eventView implements [upload.View] by forwarding every call to the model as a message.
type eventView struct {
	events chan<- tea.Msg
}

var _ upload.View = eventView{}

func (v eventView) SetStatus(status upload.Status, message string) {
	v.events <- statusMsg(status, message)
}

func (v eventView) HidePlayer() {
	v.events <- hidePlayerMsg()
}

func (v eventView) ShowPlayer(s *player.Session) {
	v.events <- showPlayerMsg(s)
}
