// Package tui provides a terminal user interface for midiroll
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/midiroll/pkg/converter"
	"github.com/james-see/midiroll/pkg/pianoroll"
)

// Plasma-inspired color scheme, matching the heat maps
var (
	plasmaViolet = lipgloss.Color("#7E03A8")
	plasmaPink   = lipgloss.Color("#CC4778")
	plasmaOrange = lipgloss.Color("#F89540")
	plasmaYellow = lipgloss.Color("#F0F921")
	darkGray     = lipgloss.Color("#1A1A2E")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(plasmaYellow).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#C0C0C0")).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(plasmaOrange).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(plasmaPink).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(plasmaYellow).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(plasmaOrange)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(plasmaViolet).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateConverting
	StateResult
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	FromFormat  converter.Format
	ToFormat    converter.Format
}

var menuItems = []MenuItem{
	{Title: "MIDI → ROLL", Description: "Encode a MIDI file as a .roll piano roll", FromFormat: converter.FormatMIDI, ToFormat: converter.FormatRoll},
	{Title: "ROLL → MIDI", Description: "Decode a .roll piano roll to MIDI", FromFormat: converter.FormatRoll, ToFormat: converter.FormatMIDI},
	{Title: "MIDI → NPY", Description: "Encode a MIDI file as a NumPy array", FromFormat: converter.FormatMIDI, ToFormat: converter.FormatNPY},
	{Title: "NPY → MIDI", Description: "Decode a NumPy piano roll to MIDI", FromFormat: converter.FormatNPY, ToFormat: converter.FormatMIDI},
	{Title: "MIDI → PNG", Description: "Render a MIDI file as a heat map", FromFormat: converter.FormatMIDI, ToFormat: converter.FormatPNG},
	{Title: "ROLL → PNG", Description: "Render a .roll piano roll as a heat map", FromFormat: converter.FormatRoll, ToFormat: converter.FormatPNG},
	{Title: "Exit", Description: "Exit the application", FromFormat: converter.FormatUnknown, ToFormat: converter.FormatUnknown},
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	conv         *converter.Converter
	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	outputFile   string
	conversion   MenuItem
	report       *pianoroll.Report
	err          error
	width        int
	height       int
}

// conversionDoneMsg signals conversion completion
type conversionDoneMsg struct {
	outputFile string
	report     *pianoroll.Report
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model converting with conv
func New(conv *converter.Converter) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".mid", ".midi", ".roll", ".npy"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(plasmaOrange)

	return Model{
		state:      StateMenu,
		menuIndex:  0,
		conv:       conv,
		filePicker: fp,
		spinner:    s,
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// the file picker needs every message while it is open
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateConverting
			return m, tea.Batch(m.spinner.Tick, m.performConversion())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case conversionDoneMsg:
		m.state = StateResult
		m.outputFile = msg.outputFile
		m.report = msg.report
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		if m.menuIndex == len(menuItems)-1 {
			return m, tea.Quit
		}
		m.conversion = menuItems[m.menuIndex]
		m.state = StateFilePicker

		switch m.conversion.FromFormat {
		case converter.FormatMIDI:
			m.filePicker.AllowedTypes = []string{".mid", ".midi"}
		default:
			m.filePicker.AllowedTypes = []string{m.conversion.FromFormat.Extension()}
		}

		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.report = nil
		m.selectedFile = ""
		m.outputFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performConversion() tea.Cmd {
	conv, input, to := m.conv, m.selectedFile, m.conversion.ToFormat
	return func() tea.Msg {
		output := outputPath(input, to)
		report, err := conv.ConvertFile(input, output)
		if err != nil {
			return conversionDoneMsg{report: report, err: err}
		}
		return conversionDoneMsg{outputFile: output, report: report}
	}
}

// outputPath places the output next to the input with to's extension
func outputPath(input string, to converter.Format) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + to.Extension()
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateConverting:
		s.WriteString(m.viewConverting())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT CONVERSION "))
	s.WriteString("\n")
	s.WriteString(menuStyle.Render(fmt.Sprintf("grid %s", m.conv.GetGrid())))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(plasmaPink).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" SELECT %s FILE ", strings.ToUpper(string(m.conversion.FromFormat)))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewConverting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" CONVERTING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Converting %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %s → %s", m.conversion.FromFormat, m.conversion.ToFormat)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Conversion failed: %s", m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Conversion complete!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Output: %s", filepath.Base(m.outputFile)))
	}

	if r := m.report; r != nil {
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Notes:  %d encoded, %d drums dropped", r.Encoded, r.Drums))
		if n := r.Skipped(); n > 0 {
			s.WriteString("\n")
			s.WriteString(warnStyle.Render(fmt.Sprintf("⚠ %d notes skipped", n)))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
   __  __ ___ ____ ___ ____   ___  _     _
  |  \/  |_ _|  _ \_ _|  _ \ / _ \| |   | |
  | |\/| || || | | | || |_) | | | | |   | |
  | |  | || || |_| | ||  _ <| |_| | |___| |___
  |_|  |_|___|____/___|_| \_\\___/|_____|_____|
`
	return lipgloss.NewStyle().Foreground(plasmaOrange).Render(logo)
}

// Run starts the TUI application
func Run(conv *converter.Converter) error {
	p := tea.NewProgram(New(conv), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
