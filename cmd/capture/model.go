package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yungbote/voicenotes-backend/internal/capture"
)

const tickInterval = 250 * time.Millisecond

// Model is the root bubbletea model for the capture TUI.
type Model struct {
	machine *capture.Machine

	// Recording state
	elapsed time.Duration
	level   float64

	// Results
	transcript  *capture.TranscriptInfo
	tasks       []capture.TaskInfo
	stickyLabel string
	stickies    []capture.StickyInfo

	// UI state
	statusText   string
	errorMessage string
	pollTimedOut bool
	typing       bool
	input        string
	width        int
	height       int
}

func NewModel(machine *capture.Machine) Model {
	return Model{
		machine:    machine,
		statusText: "Press r to start recording",
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg{At: t}
	})
}

func (m Model) startRecordingCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.machine.StartRecording(context.Background()); err != nil {
			return MachineErrorMsg{Err: err}
		}
		return RecordingStartedMsg{}
	}
}

func (m Model) stopAndProcessCmd() tea.Cmd {
	return func() tea.Msg {
		info, err := m.machine.StopAndProcess(context.Background())
		if errors.Is(err, capture.ErrPollTimeout) {
			return PollTimeoutMsg{}
		}
		if err != nil {
			return MachineErrorMsg{Err: err}
		}
		return TranscriptReadyMsg{Info: info}
	}
}

func (m Model) checkTranscriptCmd() tea.Cmd {
	return func() tea.Msg {
		info, err := m.machine.CheckTranscript(context.Background())
		if errors.Is(err, capture.ErrPollTimeout) {
			// Still in flight: show the server's own view alongside the
			// timeout. The status read is best-effort.
			status, statusErr := m.machine.ServerStatus(context.Background())
			if statusErr != nil {
				status = nil
			}
			return PollTimeoutMsg{Status: status}
		}
		if err != nil {
			return MachineErrorMsg{Err: err}
		}
		return TranscriptReadyMsg{Info: info}
	}
}

func (m Model) submitNoteCmd(text string) tea.Cmd {
	return func() tea.Msg {
		info, err := m.machine.SubmitTypedNote(context.Background(), text)
		if err != nil {
			return MachineErrorMsg{Err: err}
		}
		return TranscriptReadyMsg{Info: info}
	}
}

func (m Model) summarizeCmd() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.machine.Summarize(context.Background())
		if err != nil {
			return MachineErrorMsg{Err: err}
		}
		return TasksExtractedMsg{Tasks: tasks}
	}
}

func (m Model) generateStickiesCmd() tea.Cmd {
	return func() tea.Msg {
		domain, stickies, err := m.machine.GenerateStickies(context.Background())
		if err != nil {
			return MachineErrorMsg{Err: err}
		}
		return StickiesGeneratedMsg{Domain: domain, Stickies: stickies}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.machine.Phase() == capture.PhaseRecording {
			m.elapsed = m.machine.Elapsed()
			m.level = m.machine.Level()
		}
		return m, tickCmd()

	case RecordingStartedMsg:
		m.statusText = "Recording... press s to stop, c to cancel"
		m.errorMessage = ""
		return m, nil

	case TranscriptReadyMsg:
		m.transcript = msg.Info
		m.pollTimedOut = false
		m.statusText = "Transcript ready. t: extract tasks, g: generate stickies, n: new note"
		return m, nil

	case PollTimeoutMsg:
		m.pollTimedOut = true
		m.statusText = "Still processing server-side. Press p to check again."
		if msg.Status != nil {
			m.statusText = fmt.Sprintf("Server reports %s (%.1fs of audio). Press p to check again.",
				msg.Status.Status, msg.Status.Duration)
		}
		return m, nil

	case TasksExtractedMsg:
		m.tasks = msg.Tasks
		m.statusText = fmt.Sprintf("%d task(s) created", len(msg.Tasks))
		return m, nil

	case StickiesGeneratedMsg:
		m.stickyLabel = msg.Domain
		m.stickies = msg.Stickies
		m.statusText = fmt.Sprintf("%d stickies under %q", len(msg.Stickies), msg.Domain)
		return m, nil

	case MachineErrorMsg:
		m.errorMessage = msg.Err.Error()
		m.statusText = "Press n to start over"
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.typing {
		return m.handleTypingKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		// A live recording must not hold the microphone past exit.
		if m.machine.Phase() == capture.PhaseRecording {
			_ = m.machine.Cancel()
		}
		return m, tea.Quit

	case "r":
		if m.machine.Phase() == capture.PhaseIdle {
			return m, m.startRecordingCmd()
		}

	case "i":
		if m.machine.Phase() == capture.PhaseIdle {
			m.typing = true
			m.input = ""
			m.statusText = "Type the note, enter to submit, esc to cancel"
			return m, nil
		}

	case "s":
		if m.machine.Phase() == capture.PhaseRecording {
			m.statusText = "Uploading and transcribing..."
			return m, m.stopAndProcessCmd()
		}

	case "c":
		if m.machine.Phase() == capture.PhaseRecording {
			if err := m.machine.Cancel(); err != nil {
				m.errorMessage = err.Error()
				return m, nil
			}
			m.elapsed = 0
			m.statusText = "Recording discarded. Press r to start again"
			return m, nil
		}

	case "p":
		if m.pollTimedOut {
			m.statusText = "Checking..."
			return m, m.checkTranscriptCmd()
		}

	case "t":
		if m.machine.Phase() == capture.PhaseDone {
			m.statusText = "Extracting tasks..."
			return m, m.summarizeCmd()
		}

	case "g":
		if m.machine.Phase() == capture.PhaseDone {
			m.statusText = "Generating stickies..."
			return m, m.generateStickiesCmd()
		}

	case "n":
		phase := m.machine.Phase()
		if phase == capture.PhaseDone || phase == capture.PhaseError {
			if err := m.machine.Reset(); err != nil {
				m.errorMessage = err.Error()
				return m, nil
			}
			m = NewModel(m.machine)
		}
	}
	return m, nil
}

// handleTypingKey edits the typed-note buffer; every other key binding is
// suspended until the note is submitted or abandoned.
func (m Model) handleTypingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input)
		if text == "" {
			m.statusText = "Nothing to submit. Keep typing or press esc"
			return m, nil
		}
		m.typing = false
		m.input = ""
		m.statusText = "Submitting note..."
		return m, m.submitNoteCmd(text)

	case tea.KeyEsc:
		m.typing = false
		m.input = ""
		m.statusText = "Press r to start recording"
		return m, nil

	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyBackspace:
		if len(m.input) > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
		return m, nil

	case tea.KeySpace:
		m.input += " "
		return m, nil

	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("voicenotes capture"))
	b.WriteString("\n\n")

	phase := m.machine.Phase()
	switch phase {
	case capture.PhaseRecording:
		b.WriteString(recordingDotStyle.Render("●"))
		b.WriteString(fmt.Sprintf(" REC %s  ", formatElapsed(m.elapsed)))
		b.WriteString(meterStyle.Render(levelMeter(m.level)))
	default:
		b.WriteString(idleDotStyle.Render("○"))
		b.WriteString(" " + string(phase))
	}
	b.WriteString("\n\n")

	if m.typing {
		b.WriteString(transcriptStyle.Render("> " + m.input + "█"))
		b.WriteString("\n\n")
	}

	if m.transcript != nil {
		b.WriteString(transcriptStyle.Render(m.transcript.Transcript))
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(fmt.Sprintf("confidence %.2f", m.transcript.Confidence)))
		b.WriteString("\n\n")
	}

	if len(m.tasks) > 0 {
		b.WriteString(titleStyle.Render("Tasks"))
		b.WriteString("\n")
		for _, task := range m.tasks {
			line := "  - " + task.Title
			if task.DueDate != nil {
				line += statusStyle.Render("  due " + task.DueDate.Format("Mon Jan 2 15:04"))
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	if len(m.stickies) > 0 {
		b.WriteString(domainStyle.Render(m.stickyLabel))
		b.WriteString("\n")
		for _, sticky := range m.stickies {
			b.WriteString("  - " + sticky.Concept + ": " + sticky.Definition + "\n")
		}
		b.WriteString("\n")
	}

	if m.errorMessage != "" {
		b.WriteString(errorStyle.Render("error: " + m.errorMessage))
		b.WriteString("\n")
	}

	b.WriteString(statusStyle.Render(m.statusText))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("r record  i type note  s stop  c cancel  t tasks  g stickies  n new  q quit"))
	b.WriteString("\n")

	return b.String()
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// levelMeter renders a ten-segment amplitude bar.
func levelMeter(level float64) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level * 10)
	return strings.Repeat("▮", filled) + strings.Repeat("▯", 10-filled)
}
