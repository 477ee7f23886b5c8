package tui

import (
	"time"

	"github.com/ProhibitedTV/StreamPulse/internal/fetch"
	"github.com/ProhibitedTV/StreamPulse/internal/rotation"
)

// Messages passed through the bubbletea update loop.

type progressMsg fetch.Progress

type loadedMsg struct {
	result *fetch.ResultSet
}

type snapshotMsg rotation.Snapshot

type clockTickMsg time.Time

type openErrMsg struct {
	err error
}
