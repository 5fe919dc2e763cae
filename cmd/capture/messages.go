package main

import (
	"time"

	"github.com/yungbote/voicenotes-backend/internal/capture"
)

// TickMsg drives the elapsed-time readout and the level meter while
// recording.
type TickMsg struct {
	At time.Time
}

// RecordingStartedMsg is sent when the microphone is live.
type RecordingStartedMsg struct{}

// TranscriptReadyMsg carries the finished transcript.
type TranscriptReadyMsg struct {
	Info *capture.TranscriptInfo
}

// PollTimeoutMsg is sent when the transcript poll budget ran out without a
// terminal status. Status carries the server's view when a manual re-check
// came back still in flight.
type PollTimeoutMsg struct {
	Status *capture.StatusInfo
}

// TasksExtractedMsg carries the tasks the backend produced.
type TasksExtractedMsg struct {
	Tasks []capture.TaskInfo
}

// StickiesGeneratedMsg carries the generated stickies and their domain.
type StickiesGeneratedMsg struct {
	Domain   string
	Stickies []capture.StickyInfo
}

// MachineErrorMsg is sent when any machine operation fails.
type MachineErrorMsg struct {
	Err error
}
