// Package tui is the interactive list screen. Every remote call runs as a
// tea.Cmd; its listsync.Result comes back as a message and is applied in
// Update, which is the only place state changes.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/todosync/internal/listsync"
	"github.com/idilsaglam/todosync/internal/model"
)

// listItem adapts model.Item to bubbles/list.Item
type listItem struct {
	model.Item
}

func (i listItem) Title() string       { return i.Name }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.Name }

// toggleLabel names the toggle control for the item's current state.
func toggleLabel(completed bool) string {
	if completed {
		return "Undo"
	}
	return "Complete"
}

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	box := mutedStyle.Render(boxUnchecked)
	text := it.Name
	if it.IsCompleted {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}
	prefix := "  "
	controls := helpStyle.Render(fmt.Sprintf("  [%s] [Delete]", toggleLabel(it.IsCompleted)))
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+box+" "+text+controls)
}

type keyMap struct {
	Add    key.Binding
	Submit key.Binding
	Cancel key.Binding
	Toggle key.Binding
	Delete key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Toggle: key.NewBinding(key.WithKeys(" ", "c"), key.WithHelp("space/c", "complete/undo")),
		Delete: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Model is the Bubble Tea model for the list screen.
type Model struct {
	ctx  context.Context
	sync *listsync.Synchronizer
	keys keyMap

	list    list.Model
	input   textinput.Model
	spinner spinner.Model
	adding  bool

	width, height int
}

// New builds the screen around s. Calls issued from it run with ctx.
func New(ctx context.Context, s *listsync.Synchronizer) Model {
	keys := defaultKeys()

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("todo", "todos")
	extra := func() []key.Binding { return []key.Binding{keys.Add, keys.Toggle, keys.Delete, keys.Quit} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "New Todo..."
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	return Model{
		ctx:     ctx,
		sync:    s,
		keys:    keys,
		list:    l,
		input:   ti,
		spinner: sp,
		width:   80,
		height:  24,
	}
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(ctx context.Context, s *listsync.Synchronizer) error {
	p := tea.NewProgram(New(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// issue runs call off the Update loop; its Result comes back as a message.
func (m Model) issue(call listsync.Call) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return call(ctx) }
}

// Init fetches the list once.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.issue(m.sync.BeginLoad()), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case listsync.Result:
		if err := m.sync.Apply(msg); err == nil && msg.Op == listsync.OpAdd {
			m.adding = false
			m.input.Blur()
		}
		cmd := m.refresh()
		m.resize()
		return m, cmd

	case spinner.TickMsg:
		if !m.sync.State().Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.adding {
			return m.updateInput(msg)
		}
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Add):
			m.adding = true
			m.input.SetValue(m.sync.State().PendingInput)
			m.input.CursorEnd()
			m.resize()
			return m, m.input.Focus()
		case key.Matches(msg, m.keys.Toggle):
			if it, ok := m.selected(); ok {
				return m, m.issue(m.sync.BeginToggle(it.ID, it.IsCompleted))
			}
			return m, nil
		case key.Matches(msg, m.keys.Delete):
			if it, ok := m.selected(); ok {
				return m, m.issue(m.sync.BeginRemove(it.ID))
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		call, err := m.sync.BeginAdd(m.input.Value())
		if err != nil {
			m.resize()
			return m, nil
		}
		return m, m.issue(call)
	case key.Matches(msg, m.keys.Cancel):
		m.adding = false
		m.input.Blur()
		m.resize()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.sync.SetInput(v)
		m.resize()
	}
	return m, cmd
}

// refresh copies synchronizer state into the widgets.
func (m *Model) refresh() tea.Cmd {
	st := m.sync.State()
	if m.input.Value() != st.PendingInput {
		m.input.SetValue(st.PendingInput)
	}
	items := make([]list.Item, 0, len(st.Items))
	for _, it := range st.Items {
		items = append(items, listItem{it})
	}
	return m.list.SetItems(items)
}

func (m Model) selected() (model.Item, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Item{}, false
	}
	return it.Item, true
}

func (m *Model) resize() {
	// header, progress and border
	reserved := 6
	if m.adding {
		reserved += 4
	}
	if m.sync.State().LastError != "" {
		reserved++
	}
	h := m.height - reserved
	if h < 3 {
		h = 3
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) header(items []model.Item) string {
	d, p := model.Stats(items)
	counts := fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Todos"),
		successStyle.Render("✔"), d,
		pendingStyle.Render("•"), p,
		accentStyle.Render("Total"), len(items),
	)
	return counts + "\n" + progressBar(d, d+p, 28)
}

func (m Model) View() string {
	st := m.sync.State()

	var b strings.Builder
	b.WriteString(m.header(st.Items))
	b.WriteString("\n")
	if st.LastError != "" {
		b.WriteString(bannerStyle.Render(st.LastError))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if st.Loading {
		b.WriteString(m.spinner.View() + " Loading...")
	} else {
		b.WriteString(m.list.View())
	}

	if m.adding {
		bar := borderStyle.Render(titleStyle.Render("Add new todo") + "\n" + m.input.View())
		b.WriteString("\n" + bar)
	}
	return borderStyle.Render(b.String())
}
