package iacli

import (
	"encoding/json"

	"github.com/Gameaday/ia-helper-sub003/common"
)

// Handler processes raw push notification payloads. Implementations
// unmarshal the message and act on it.
type Handler interface {
	Handle(json.RawMessage) error
}

// ProgressHandler decodes progress notifications and invokes a
// callback per batch.
type ProgressHandler struct {
	Callback func(*common.ProgressNotification) error
}

// NewProgressHandler creates a handler for the daemon's periodic
// progress pushes.
func NewProgressHandler(callback func(*common.ProgressNotification) error) *ProgressHandler {
	return &ProgressHandler{Callback: callback}
}

func (h *ProgressHandler) Handle(m json.RawMessage) error {
	var v common.ProgressNotification
	if err := json.Unmarshal(m, &v); err != nil {
		return err
	}
	return h.Callback(&v)
}

// StateHandler invokes a callback whenever any task changes state. The
// notification carries no payload; clients re-list to pick up details.
type StateHandler struct {
	Callback func() error
}

// NewStateHandler creates a handler for state change pings.
func NewStateHandler(callback func() error) *StateHandler {
	return &StateHandler{Callback: callback}
}

func (h *StateHandler) Handle(json.RawMessage) error {
	return h.Callback()
}
