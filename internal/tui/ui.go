package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/intthread/internal/registry"
	"github.com/Paintersrp/intthread/internal/thread"
)

const (
	tableTitle             = "Threads"
	eventsTitle            = "Events"
	filterPageName         = "filter"
	defaultRefreshInterval = 250 * time.Millisecond
	defaultMaxMessages     = 200
)

// Source is the registry surface driven by the UI.
type Source interface {
	Snapshot() []registry.Info
	Start(registry.ID) error
	Suspend(registry.ID) error
	Resume(registry.ID) error
	Interrupt(registry.ID) error
}

// Option configures UI behaviour.
type Option func(*UI)

// WithRefreshInterval sets how often the registry is polled.
func WithRefreshInterval(d time.Duration) Option {
	return func(u *UI) {
		if d > 0 {
			u.interval = d
		}
	}
}

// WithScreen runs the UI on screen instead of the terminal.
func WithScreen(screen tcell.Screen) Option {
	return func(u *UI) {
		u.screen = screen
	}
}

// WithMaxMessages sets the number of event lines retained.
func WithMaxMessages(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxMessages = n
		}
	}
}

// UI is the interactive thread table backed by tview.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	table  *tview.Table
	events *tview.TextView
	source Source
	screen tcell.Screen

	interval    time.Duration
	maxMessages int

	threads     []registry.Info
	visible     []registry.ID
	selected    registry.ID
	filter      string
	filterExpr  *regexp.Regexp
	logsFocused bool
	messages    []string

	mu sync.RWMutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// New constructs a UI over source.
func New(source Source, opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	events := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	events.SetBorder(true).SetTitle(eventsTitle)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 3, true).
		AddItem(events, 0, 1, false)

	pages := tview.NewPages().AddPage("main", flex, true, true)

	ui := &UI{
		app:         app,
		pages:       pages,
		table:       table,
		events:      events,
		source:      source,
		interval:    defaultRefreshInterval,
		maxMessages: defaultMaxMessages,
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	if ui.screen != nil {
		app.SetScreen(ui.screen)
	}
	app.SetRoot(pages, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshTableLocked()
	ui.mu.Unlock()

	return ui
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and polls the registry until Stop is
// invoked or the provided context is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.poll(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	// The poller only waits on the loop while ctx is live.
	cancel()
	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) poll(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.reload(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.reload(ctx)
		}
	}
}

// reload hands a fresh snapshot to the event loop and waits for the redraw.
// It gives up once ctx is done: an update queued after the loop has stopped
// never runs, and its sender stays parked.
func (u *UI) reload(ctx context.Context) {
	snapshot := u.source.Snapshot()
	drawn := make(chan struct{})
	go func() {
		defer close(drawn)
		u.app.QueueUpdateDraw(func() {
			u.mu.Lock()
			defer u.mu.Unlock()
			u.threads = snapshot
			u.renderLocked()
		})
	}()
	select {
	case <-drawn:
	case <-ctx.Done():
	}
}

// refresh reloads the snapshot and rebuilds the widgets in place. It runs on
// the event loop, which redraws once the handler returns.
func (u *UI) refresh() {
	snapshot := u.source.Snapshot()
	u.mu.Lock()
	defer u.mu.Unlock()
	u.threads = snapshot
	u.renderLocked()
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if focus := u.app.GetFocus(); focus != u.table && focus != u.events {
		return event
	}
	switch event.Key() {
	case tcell.KeyEnter:
		u.toggleFocus()
		return nil
	case tcell.KeyUp, tcell.KeyDown:
		return event
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case '/':
			u.showFilterPrompt()
			return nil
		case 'g', 'G':
			u.act("start", u.source.Start)
			return nil
		case 's', 'S':
			u.act("suspend", u.source.Suspend)
			return nil
		case 'r', 'R':
			u.act("resume", u.source.Resume)
			return nil
		case 'i', 'I':
			u.act("interrupt", u.source.Interrupt)
			return nil
		}
	}
	return event
}

// act applies op to the selected thread and records the outcome.
func (u *UI) act(name string, op func(registry.ID) error) {
	u.mu.Lock()
	u.syncSelectionLocked()
	id, ok := u.selectedLocked()
	u.mu.Unlock()
	if !ok {
		u.record(fmt.Sprintf("[yellow]%s: no thread selected[-]", name))
		return
	}

	if err := op(id); err != nil {
		u.record(fmt.Sprintf("[red]%s %d: %v[-]", name, id, err))
	} else {
		u.record(fmt.Sprintf("%s %d", name, id))
	}
	u.refresh()
}

func (u *UI) record(message string) {
	line := fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), message)
	u.mu.Lock()
	u.messages = append(u.messages, line)
	if len(u.messages) > u.maxMessages {
		trim := len(u.messages) - u.maxMessages
		u.messages = append([]string(nil), u.messages[trim:]...)
	}
	u.mu.Unlock()
}

func (u *UI) toggleFocus() {
	if u.logsFocused {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.events)
	}
	u.logsFocused = !u.logsFocused
}

func (u *UI) showFilterPrompt() {
	u.mu.RLock()
	current := u.filter
	u.mu.RUnlock()

	input := tview.NewInputField().
		SetLabel("Regex filter: ").
		SetText(current).
		SetFieldWidth(40)

	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Apply", func() {
			u.applyFilter(input.GetText())
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		}).
		AddButton("Cancel", func() {
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		})

	form.SetBorder(true).SetTitle("Filter Threads")

	grid := tview.NewGrid().
		SetColumns(0, 60, 0).
		SetRows(0, 7, 0).
		AddItem(form, 1, 1, 1, 1, 0, 0, true)

	u.pages.AddPage(filterPageName, grid, true, true)
	u.app.SetFocus(input)
}

func (u *UI) applyFilter(expr string) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		u.mu.Lock()
		u.filter = ""
		u.filterExpr = nil
		u.renderLocked()
		u.mu.Unlock()
		return
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		u.showErrorModal(fmt.Sprintf("Invalid filter: %v", err))
		return
	}

	u.mu.Lock()
	u.filter = expr
	u.filterExpr = re
	u.renderLocked()
	u.mu.Unlock()
}

func (u *UI) showErrorModal(message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		})

	u.pages.RemovePage(filterPageName)
	u.pages.AddPage(filterPageName, modal, true, true)
}

func (u *UI) renderLocked() {
	u.refreshTableLocked()
	u.renderEventsLocked()
}

func (u *UI) refreshTableLocked() {
	u.syncSelectionLocked()
	u.table.Clear()

	headers := []string{"ID", "NAME", "BACKEND", "STATE", "TID", "STATUS", "MESSAGE"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	u.visible = u.visible[:0]
	row := 1
	for _, info := range u.threads {
		if u.filterExpr != nil && !u.filterExpr.MatchString(info.Name) {
			continue
		}
		u.visible = append(u.visible, info.ID)

		tid := "-"
		if info.NativeID != 0 {
			tid = fmt.Sprintf("%d", info.NativeID)
		}
		message := ""
		if info.Err != nil {
			message = info.Err.Error()
		}
		if len(message) > 80 {
			message = message[:77] + "..."
		}

		values := []string{
			fmt.Sprintf("%d", info.ID),
			info.Name,
			info.Backend,
			formatState(info.State, info.Interrupted),
			tid,
			fmt.Sprintf("%d", info.StatusCode),
			message,
		}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if col == 0 {
				cell = cell.SetReference(info.ID)
			}
			u.table.SetCell(row, col, cell)
		}
		row++
	}

	if u.filter != "" {
		u.table.SetTitle(fmt.Sprintf("%s /%s/", tableTitle, u.filter))
	} else {
		u.table.SetTitle(tableTitle)
	}

	u.ensureSelectionLocked()
}

func (u *UI) renderEventsLocked() {
	u.events.Clear()
	for _, line := range u.messages {
		fmt.Fprintln(u.events, line)
	}
	u.events.ScrollToEnd()
}

func (u *UI) ensureSelectionLocked() {
	if len(u.visible) == 0 {
		u.selected = 0
		u.table.Select(0, 0)
		return
	}

	idx := 0
	found := false
	for i, id := range u.visible {
		if id == u.selected {
			idx = i
			found = true
			break
		}
	}
	if !found {
		u.selected = u.visible[0]
	}
	u.table.Select(idx+1, 0)
}

// syncSelectionLocked follows the table cursor so the selection survives a
// redraw with a different row order.
func (u *UI) syncSelectionLocked() {
	row, _ := u.table.GetSelection()
	if row <= 0 || row-1 >= len(u.visible) {
		return
	}
	u.selected = u.visible[row-1]
}

func (u *UI) selectedLocked() (registry.ID, bool) {
	for _, id := range u.visible {
		if id == u.selected {
			return id, true
		}
	}
	return 0, false
}

func formatState(s thread.State, interrupted bool) string {
	label := s.String()
	if label == "" {
		return "-"
	}
	label = strings.ToUpper(label[:1]) + label[1:]
	if interrupted && (s == thread.StateRunning || s == thread.StateSuspended) {
		label += " (interrupting)"
	}
	return label
}
