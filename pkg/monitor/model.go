// Package monitor is the interactive list view: one Bubble Tea model per
// list, with every mutation applied optimistically through an
// optimistic.Controller.
package monitor

import (
	"context"
	"log/slog"
	"slices"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/optimistic"
)

// Invalidation topics a model may listen to.
const (
	TopicAuthors = "authors"
	TopicBooks   = "books"
)

// Options configures a monitor model.
type Options struct {
	DeletePolicy optimistic.DeletePolicy
	// Subscribe, if set, streams invalidation topics until ctx is done.
	Subscribe func(ctx context.Context, fn func(topic string)) error
	Logger    *slog.Logger
}

// statusLine receives controller notices. It is shared by every copy of
// the model.
type statusLine struct {
	notice optimistic.Notice
}

// Messages
type (
	loadedMsg[T any] struct {
		list    []T
		authors []models.Author
		err     error
	}
	settledMsg[T any] struct {
		s optimistic.Settlement[T]
	}
	eventMsg struct {
		topic string
	}
	subscriptionEndedMsg struct {
		err error
	}
)

// Model is the Bubble Tea model for one list.
type Model[T optimistic.Entity[T]] struct {
	ctx     context.Context
	backend optimistic.Backend[T]
	ctrl    *optimistic.Controller[T]
	log     *slog.Logger

	title   string
	columns []string
	row     func(T) []string
	newForm func(kind optimistic.Kind, v T) *formState[T]
	topics  []string

	// Books only: the author list backing the form and the pending-row join.
	authorsBackend optimistic.Backend[models.Author]
	authors        *[]models.Author

	subscribe func(ctx context.Context, fn func(topic string)) error
	events    chan string

	rows    []T
	cursor  int
	form    *formState[T]
	status  *statusLine
	loading bool
	err     error

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	width  int
	height int
}

func newModel[T optimistic.Entity[T]](ctx context.Context, backend optimistic.Backend[T], name string, opts Options, prepare func(T) T) Model[T] {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	status := &statusLine{}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model[T]{
		ctx:     ctx,
		backend: backend,
		ctrl: optimistic.NewController(backend, optimistic.Options[T]{
			Name:         name,
			DeletePolicy: opts.DeletePolicy,
			Prepare:      prepare,
			Notifier:     optimistic.NotifierFunc(func(n optimistic.Notice) { status.notice = n }),
			Logger:       log,
		}),
		log:       log,
		subscribe: opts.Subscribe,
		events:    make(chan string, 8),
		status:    status,
		loading:   true,
		keys:      defaultKeyMap(),
		help:      help.New(),
		spinner:   sp,
		width:     80,
		height:    24,
	}
}

// NewAuthors returns the author list model.
func NewAuthors(ctx context.Context, backend optimistic.Backend[models.Author], opts Options) Model[models.Author] {
	m := newModel(ctx, backend, "Author", opts, nil)
	m.title = "Authors"
	m.columns = []string{"NAME", "LOCATION"}
	m.row = func(a models.Author) []string { return []string{a.Name, a.Location} }
	m.newForm = newAuthorForm
	m.topics = []string{TopicAuthors}
	return m
}

// NewBooks returns the book list model. Authors are loaded alongside books
// for the author picker and to show a pending book's author.
func NewBooks(ctx context.Context, books optimistic.Backend[models.CompleteBook], authors optimistic.Backend[models.Author], opts Options) Model[models.CompleteBook] {
	list := &[]models.Author{}
	m := newModel(ctx, books, "Book", opts, func(b models.CompleteBook) models.CompleteBook {
		return models.JoinAuthor(*list)(b)
	})
	m.title = "Books"
	m.columns = []string{"TITLE", "AUTHOR"}
	m.row = func(b models.CompleteBook) []string { return []string{b.Title, b.AuthorName()} }
	m.newForm = func(kind optimistic.Kind, b models.CompleteBook) *formState[models.CompleteBook] {
		return newBookForm(kind, b, *list)
	}
	m.topics = []string{TopicBooks, TopicAuthors}
	m.authorsBackend = authors
	m.authors = list
	return m
}

// Init loads the list and starts the live subscription.
func (m Model[T]) Init() tea.Cmd {
	cmds := []tea.Cmd{m.load()}
	if m.subscribe != nil {
		cmds = append(cmds, m.runSubscription(), m.waitForEvent())
	}
	return tea.Batch(cmds...)
}

// load reads the authoritative list (and the authors, for books).
func (m Model[T]) load() tea.Cmd {
	ctx, backend, authors := m.ctx, m.backend, m.authorsBackend
	return func() tea.Msg {
		var msg loadedMsg[T]
		if authors != nil {
			if msg.authors, msg.err = authors.List(ctx); msg.err != nil {
				return msg
			}
		}
		msg.list, msg.err = backend.List(ctx)
		return msg
	}
}

// runSubscription blocks on the event stream for the model's lifetime.
func (m Model[T]) runSubscription() tea.Cmd {
	ctx, subscribe, events := m.ctx, m.subscribe, m.events
	return func() tea.Msg {
		err := subscribe(ctx, func(topic string) {
			select {
			case events <- topic:
			case <-ctx.Done():
			}
		})
		return subscriptionEndedMsg{err: err}
	}
}

func (m Model[T]) waitForEvent() tea.Cmd {
	ctx, events := m.ctx, m.events
	return func() tea.Msg {
		select {
		case topic := <-events:
			return eventMsg{topic: topic}
		case <-ctx.Done():
			return nil
		}
	}
}

// begin applies an intent to the displayed list and dispatches its
// backend call.
func (m Model[T]) begin(intent optimistic.Intent[T]) (Model[T], tea.Cmd) {
	m.rows = m.ctrl.Begin(intent)
	m.clampCursor()
	ctx, ctrl := m.ctx, m.ctrl
	execute := func() tea.Msg {
		return settledMsg[T]{s: ctrl.Execute(ctx, intent)}
	}
	return m, tea.Batch(execute, m.spinner.Tick)
}

// Update handles messages.
func (m Model[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if m.form != nil {
			m.form.Form.WithWidth(m.formWidth())
		}
		return m, nil

	case loadedMsg[T]:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			m.log.Warn("load list", "list", m.title, "err", msg.err)
			return m, nil
		}
		if m.authors != nil {
			*m.authors = msg.authors
		}
		// A pending intent's settlement brings its own authoritative list.
		if m.ctrl.InFlight() == 0 {
			m.ctrl.Seed(msg.list)
			m.rows = m.ctrl.View()
			m.clampCursor()
		}
		return m, nil

	case settledMsg[T]:
		m.rows = m.ctrl.Settle(msg.s)
		m.clampCursor()
		if msg.s.Failed() && msg.s.Intent.Kind != optimistic.KindDelete {
			// Reopen the form with what the user entered.
			m.form = m.newForm(msg.s.Intent.Kind, msg.s.Intent.Payload)
			m.form.Err = msg.s.Err.Error()
			m.form.Form.WithWidth(m.formWidth())
			return m, m.form.Form.Init()
		}
		return m, nil

	case eventMsg:
		if slices.Contains(m.topics, msg.topic) {
			return m, tea.Batch(m.load(), m.waitForEvent())
		}
		return m, m.waitForEvent()

	case subscriptionEndedMsg:
		if msg.err != nil {
			m.log.Warn("live updates stopped", "err", msg.err)
			m.status.notice = optimistic.Notice{
				Title:       "Live updates stopped",
				Description: msg.err.Error(),
				Variant:     optimistic.VariantDestructive,
			}
		}
		return m, nil

	case spinner.TickMsg:
		if m.ctrl.State() != optimistic.StatePending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.form != nil {
		return m.updateForm(msg)
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(msg)
	}
	return m, nil
}

// handleKey processes list key bindings.
func (m Model[T]) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.keys.setRowActions(m.selectedSettled())

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.load()
	case key.Matches(msg, m.keys.New):
		if m.authors != nil && len(*m.authors) == 0 {
			m.status.notice = optimistic.Notice{
				Title:       "No authors",
				Description: "Create an author first",
				Variant:     optimistic.VariantDestructive,
			}
			return m, nil
		}
		var zero T
		return m.openForm(optimistic.KindCreate, zero)
	case key.Matches(msg, m.keys.Edit):
		return m.openForm(optimistic.KindUpdate, m.rows[m.cursor])
	case key.Matches(msg, m.keys.Delete):
		return m.begin(optimistic.Delete(m.rows[m.cursor]))
	}
	return m, nil
}

func (m Model[T]) openForm(kind optimistic.Kind, v T) (tea.Model, tea.Cmd) {
	m.form = m.newForm(kind, v)
	m.form.Form.WithWidth(m.formWidth())
	return m, m.form.Form.Init()
}

// updateForm forwards messages to the open form and submits it on completion.
func (m Model[T]) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEsc {
		m.form = nil
		return m, nil
	}

	form, cmd := m.form.Form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form.Form = f
	}

	switch m.form.Form.State {
	case huh.StateCompleted:
		return m.submitForm()
	case huh.StateAborted:
		m.form = nil
		return m, nil
	}
	return m, cmd
}

// submitForm turns the form values into an intent.
func (m Model[T]) submitForm() (Model[T], tea.Cmd) {
	v, kind := m.form.Value(), m.form.Kind
	m.form = nil
	if kind == optimistic.KindUpdate {
		return m.begin(optimistic.Update(v))
	}
	return m.begin(optimistic.Create(v))
}

// selectedSettled reports whether the cursor is on a row that is not in flight.
func (m Model[T]) selectedSettled() bool {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return false
	}
	return !optimistic.IsSentinel(m.rows[m.cursor].EntityID())
}

func (m *Model[T]) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model[T]) formWidth() int {
	return max(m.width-6, 20)
}

// Rows returns the displayed list.
func (m Model[T]) Rows() []T { return slices.Clone(m.rows) }

// Notice returns the latest status notice.
func (m Model[T]) Notice() optimistic.Notice { return m.status.notice }

// FormOpen reports whether a create or edit form is shown.
func (m Model[T]) FormOpen() bool { return m.form != nil }
