package main

import "time"

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

// CheckFlags holds flags for the check command
type CheckFlags struct {
	Full bool
}

// RecordFlags mirror the recording options the UI sends.
type RecordFlags struct {
	URL           string
	Mode          string
	Format        string
	Quality       string
	Width         uint32
	Height        uint32
	Duration      uint32
	FrameRate     uint32
	WaitForCanvas bool
	PollInterval  time.Duration
}

// HistoryFlags holds flags for the history command
type HistoryFlags struct {
	Limit     int
	SessionID string // set from the optional positional argument
}
