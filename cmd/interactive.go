package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/parflate/parflate/pkg/format"
	"github.com/parflate/parflate/pkg/parflate"
)

// Styles
var (
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	packedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // Green
	docStyle    = lipgloss.NewStyle().Margin(1, 2)
)

type browserItem struct {
	path   string
	name   string
	isDir  bool
	packed bool // already a .pflt stream
}

type browserModel struct {
	path       string
	items      []browserItem
	cursor     int
	status     string
	spinner    spinner.Model
	processing bool
	quitting   bool
}

func initialBrowserModel() browserModel {
	cwd, _ := os.Getwd()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cursorStyle
	m := browserModel{
		path:    cwd,
		status:  "Navigate: ↑/↓ | Enter: Open Dir | p: Pack | u: Unpack | q: Quit",
		spinner: sp,
	}
	m.loadItems()
	return m
}

func (m *browserModel) loadItems() {
	entries, err := os.ReadDir(m.path)
	if err != nil {
		m.status = "Error reading directory"
		return
	}

	m.items = []browserItem{{name: "..", isDir: true, path: filepath.Dir(m.path)}}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, ".") {
			continue
		}
		m.items = append(m.items, browserItem{
			name:   name,
			isDir:  e.IsDir(),
			path:   filepath.Join(m.path, name),
			packed: strings.HasSuffix(name, packedExt),
		})
	}
	m.cursor = 0
}

func (m browserModel) Init() tea.Cmd {
	return nil
}

func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}

		case "enter":
			selected := m.items[m.cursor]
			if selected.isDir {
				m.path = selected.path
				m.loadItems()
			}

		case "p":
			item := m.items[m.cursor]
			if !item.isDir && !item.packed {
				m.processing = true
				return m, tea.Batch(m.spinner.Tick, packFileCmd(item.path))
			}
			m.status = "Select a regular file to pack"

		case "u":
			item := m.items[m.cursor]
			if !item.isDir && item.packed {
				m.processing = true
				return m, tea.Batch(m.spinner.Tick, unpackFileCmd(item.path))
			}
			m.status = "Select a " + packedExt + " file to unpack"
		}

	case spinner.TickMsg:
		if m.processing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case browserStatusMsg:
		m.status = string(msg)
		m.processing = false
		m.loadItems()
	}

	return m, nil
}

type browserStatusMsg string

func packFileCmd(path string) tea.Cmd {
	return func() tea.Msg {
		raw, err := os.ReadFile(path)
		if err != nil {
			return browserStatusMsg(fmt.Sprintf("Error: %v", err))
		}
		buf := make([]byte, parflate.CompressBound(len(raw)))
		n, err := parflate.Compress(raw, buf, parflate.Default, parflate.FlagChecksum)
		if err != nil {
			return browserStatusMsg(fmt.Sprintf("Error: %v", err))
		}
		if err := os.WriteFile(path+packedExt, buf[:n], 0644); err != nil {
			return browserStatusMsg(fmt.Sprintf("Error: %v", err))
		}
		return browserStatusMsg(fmt.Sprintf("Packed %s (%d -> %d bytes)", filepath.Base(path), len(raw), n))
	}
}

func unpackFileCmd(path string) tea.Cmd {
	return func() tea.Msg {
		stream, err := os.ReadFile(path)
		if err != nil {
			return browserStatusMsg(fmt.Sprintf("Error: %v", err))
		}
		header, _, err := format.Parse(stream)
		if err != nil {
			return browserStatusMsg(fmt.Sprintf("Not a parflate stream: %v", err))
		}
		out := make([]byte, header.TotalUncompressed())
		if _, err := parflate.Decompress(stream, out, runtime.NumCPU()); err != nil {
			return browserStatusMsg(fmt.Sprintf("Error: %v", err))
		}
		outPath := strings.TrimSuffix(path, packedExt)
		if _, err := os.Stat(outPath); err == nil {
			return browserStatusMsg(fmt.Sprintf("%s already exists", filepath.Base(outPath)))
		}
		if err := os.WriteFile(outPath, out, 0644); err != nil {
			return browserStatusMsg(fmt.Sprintf("Error: %v", err))
		}
		return browserStatusMsg(fmt.Sprintf("Unpacked %s (%d bytes)", filepath.Base(outPath), len(out)))
	}
}

func (m browserModel) View() string {
	if m.quitting {
		return "Bye!\n"
	}

	s := fmt.Sprintf("Directory: %s\n\n", m.path)

	for i, item := range m.items {
		if m.cursor == i {
			s += cursorStyle.Render(">")
		} else {
			s += " "
		}

		line := item.name
		if item.isDir {
			line = "[DIR] " + line
		} else if item.packed {
			line = packedStyle.Render(line)
		}
		s += " " + line + "\n"
	}

	if m.processing {
		s += fmt.Sprintf("\n%s Working...\n", m.spinner.View())
	} else {
		s += fmt.Sprintf("\n%s\n", m.status)
	}
	return docStyle.Render(s)
}

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Interactive terminal UI for packing and unpacking files",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := tea.NewProgram(initialBrowserModel())
		if _, err := p.Run(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}
