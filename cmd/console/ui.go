package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/world"
	"github.com/muesli/reflow/wordwrap"
)

const (
	AgentName       = "Game Master"
	PlaceHolderText = "What do you do?"

	roleNotice = "notice"
	roleError  = "error"
)

// entry is one block of the transcript. Notices and errors are local to
// the console and never sent to the api.
type entry struct {
	role    string
	title   string
	content string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api          *apiClient
	adventure    *adventure
	transcript   []entry
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type chatResponseMsg struct {
	reply *chatReply
	err   error
}

type resetMsg struct {
	adventure *adventure
	err       error
}

type summaryMsg struct {
	summary string
	err     error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

const helpText = `• /help - Show this help
• /sheet - Character sheet
• /quests - Active quests
• /summary - What the Game Master knows
• /copy - Copy the last narration
• /reset - Start the adventure over
• Ctrl+C - Quit game

Shortcuts like "look" or "inventory" are answered instantly.`

func NewConsoleUI(api *apiClient, adv *adventure) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	m := ConsoleUI{
		api:          api,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
	}
	m.begin(adv)
	return m
}

// begin shows a fresh adventure.
func (m *ConsoleUI) begin(adv *adventure) {
	m.adventure = adv
	m.transcript = m.transcript[:0]
	if adv.Opening != "" {
		m.transcript = append(m.transcript, entry{role: chat.ChatRoleAgent, content: adv.Opening})
	}
}

func (m *ConsoleUI) notice(title, content string) {
	m.transcript = append(m.transcript, entry{role: roleNotice, title: title, content: content})
}

func (m *ConsoleUI) fail(err error) {
	m.transcript = append(m.transcript, entry{role: roleError, content: "Error: " + err.Error()})
}

// writeSidePanel renders the character sheet, location, quests and the
// latest events.
func writeSidePanel(ws *world.WorldState, width int) string {
	if ws == nil {
		return ""
	}
	wrap := func(s string) string { return wordwrap.String(s, max(width, 10)) }

	var content strings.Builder
	sheet := ws.CharacterSheet()
	content.WriteString(titleStyle.Render("CHARACTER") + "\n")
	content.WriteString(wrap(fmt.Sprintf("%s\nLevel %s %s", sheet.Name, sheet.Level, sheet.Class)) + "\n")
	content.WriteString(fmt.Sprintf("HP %s\n%s\nGold %s\n", sheet.HP, sheet.Status, sheet.Gold))
	if len(sheet.Inventory) > 0 {
		content.WriteString("\nInventory:\n")
		for _, item := range sheet.Inventory {
			content.WriteString(wrap("• "+item) + "\n")
		}
	}

	loc := ws.Location()
	content.WriteString("\n" + titleStyle.Render("LOCATION") + "\n")
	content.WriteString(wrap(loc.String("name")) + "\n")
	if paths := loc.Strings("connections"); len(paths) > 0 {
		content.WriteString(wrap("→ "+strings.Join(paths, ", ")) + "\n")
	}

	content.WriteString("\n" + titleStyle.Render("QUESTS") + "\n")
	quests := ws.ActiveQuests()
	if len(quests) == 0 {
		content.WriteString("None active\n")
	}
	for _, q := range quests {
		content.WriteString(wrap("• "+q.String("name")) + "\n")
	}

	content.WriteString("\n" + titleStyle.Render("RECENT") + "\n")
	for _, e := range ws.RecentEvents(world.RecentEventLimit) {
		content.WriteString(wrap("• "+e.String("description")) + "\n")
	}

	content.WriteString("\n" + promptStyle.Render("/help for commands") + "\n")
	return content.String()
}

// writeChatContent rebuilds the transcript for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("GM ENGINE") + "\n\n")
	content.WriteString("A dark fantasy adventure. Type what you do below.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, e := range m.transcript {
		switch e.role {
		case chat.ChatRoleAgent:
			content.WriteString(formatNarratorResponse(e.content, chatWidth) + "\n\n")
		case chat.ChatRoleUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(e.content, chatWidth-5) + "\n\n")
		case roleNotice:
			content.WriteString(titleStyle.Render(e.title+":") + "\n" + wordwrap.String(e.content, chatWidth) + "\n\n")
		case roleError:
			content.WriteString(errorStyle.Render(wordwrap.String(e.content, chatWidth)) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) refreshPanels() {
	m.writeChatContent()
	m.metaViewport.SetContent(writeSidePanel(m.adventure.World, m.metaViewport.Width))
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.70) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refreshPanels()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.loading = true
			m.progressTick = 0
			m.transcript = append(m.transcript, entry{role: chat.ChatRoleUser, content: input})
			m.writeChatContent()

			return m, tea.Batch(m.sendChatMessage(input), progressTick())
		}

	case chatResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.fail(msg.err)
		} else {
			m.transcript = append(m.transcript, entry{role: chat.ChatRoleAgent, content: msg.reply.Message})
			if msg.reply.GameState != nil {
				m.adventure.World = msg.reply.GameState
			}
			if len(msg.reply.Warnings) > 0 {
				lines := make([]string, 0, len(msg.reply.Warnings))
				for _, w := range msg.reply.Warnings {
					lines = append(lines, warnStyle.Render("• "+w.String()))
				}
				m.notice("State update warnings", strings.Join(lines, "\n"))
			}
		}
		m.refreshPanels()
		return m, nil

	case resetMsg:
		m.loading = false
		if msg.err != nil {
			m.fail(msg.err)
		} else {
			m.begin(msg.adventure)
			m.notice("Reset", "Your adventure begins anew.")
		}
		m.refreshPanels()
		return m, nil

	case summaryMsg:
		if msg.err != nil {
			m.fail(msg.err)
		} else {
			m.notice("Summary", msg.summary)
		}
		m.writeChatContent()
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func formatNarratorResponse(response string, width int) string {
	// Check if response already has a speaker prefix
	hasPrefix := false
	if idx := strings.Index(response, ":"); idx > 0 && idx <= 20 {
		speaker := response[:idx]
		if len(strings.Fields(speaker)) <= 2 {
			hasPrefix = true
		}
	}

	wrapWidth := width
	if !hasPrefix {
		wrapWidth = width - len(AgentName+": ")
	}

	wrappedResponse := wordwrap.String(response, wrapWidth)
	lines := strings.Split(wrappedResponse, "\n")
	formattedLines := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			formattedLines = append(formattedLines, "")
			continue
		}

		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 {
			speaker := trimmed[:idx]
			rest := trimmed[idx+1:]
			if len(strings.Fields(speaker)) <= 2 {
				formattedLines = append(formattedLines, speakerStyle.Render(speaker+":")+rest)
				continue
			}
		}

		formattedLines = append(formattedLines, line)
	}

	result := strings.Join(formattedLines, "\n")
	if !hasPrefix {
		result = narratorStyle.Render(AgentName+": ") + result
	}
	return result
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))
	ws := m.adventure.World

	switch cmd {
	case "/help":
		m.notice("Help", helpText)

	case "/sheet":
		s := ws.CharacterSheet()
		var b strings.Builder
		fmt.Fprintf(&b, "%s, Level %s %s\nHP: %s | Status: %s | Gold: %s", s.Name, s.Level, s.Class, s.HP, s.Status, s.Gold)
		if len(s.Inventory) > 0 {
			fmt.Fprintf(&b, "\nInventory: %s", strings.Join(s.Inventory, ", "))
		}
		if len(s.Traits) > 0 {
			fmt.Fprintf(&b, "\nTraits: %s", strings.Join(s.Traits, ", "))
		}
		m.notice("Character", b.String())

	case "/quests":
		quests := ws.ActiveQuests()
		if len(quests) == 0 {
			m.notice("Quests", "You have no active quests.")
			break
		}
		lines := make([]string, 0, len(quests))
		for _, q := range quests {
			line := "• " + q.String("name")
			if desc := q.String("description"); desc != "" {
				line += ": " + desc
			}
			lines = append(lines, line)
		}
		m.notice("Quests", strings.Join(lines, "\n"))

	case "/summary":
		return m, m.fetchSummary()

	case "/copy":
		last := m.lastNarration()
		if last == "" {
			m.notice("Copy", "Nothing to copy yet.")
			break
		}
		if err := clipboard.WriteAll(last); err != nil {
			m.fail(fmt.Errorf("failed to copy to clipboard: %w", err))
			break
		}
		m.notice("Copy", "Last narration copied to the clipboard.")

	case "/reset":
		m.loading = true
		m.progressTick = 0
		m.writeChatContent()
		return m, tea.Batch(m.resetAdventure(), progressTick())

	default:
		m.notice("Unknown command", cmd+" is not a command. Try /help.")
	}

	m.writeChatContent()
	return m, nil
}

func (m ConsoleUI) lastNarration() string {
	for i := len(m.transcript) - 1; i >= 0; i-- {
		if m.transcript[i].role == chat.ChatRoleAgent {
			return m.transcript[i].content
		}
	}
	return ""
}

func (m ConsoleUI) sendChatMessage(message string) tea.Cmd {
	id := m.adventure.ID
	return func() tea.Msg {
		reply, err := m.api.sendChat(id, message)
		return chatResponseMsg{reply, err}
	}
}

func (m ConsoleUI) resetAdventure() tea.Cmd {
	id := m.adventure.ID
	return func() tea.Msg {
		adv, err := m.api.resetAdventure(id)
		return resetMsg{adv, err}
	}
}

func (m ConsoleUI) fetchSummary() tea.Cmd {
	id := m.adventure.ID
	return func() tea.Msg {
		summary, err := m.api.getSummary(id)
		return summaryMsg{summary, err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to leave your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.70) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := min(max(m.chatViewport.Width-6, 10), 80)

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := range usable {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓") // Blinking effect at the progress point
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
