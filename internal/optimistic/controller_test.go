package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend. failNext makes the next mutation
// fail; failList makes every List fail.
type fakeBackend struct {
	mu       sync.Mutex
	rows     []author
	seq      int
	failNext error
	failList error
	calls    []string
}

func (f *fakeBackend) List(ctx context.Context) ([]author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	if f.failList != nil {
		return nil, f.failList
	}
	return append([]author{}, f.rows...), nil
}

func (f *fakeBackend) takeFailure() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeBackend) Create(ctx context.Context, p author) (author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	if err := f.takeFailure(); err != nil {
		return author{}, err
	}
	f.seq++
	p.ID = fmt.Sprintf("a%d", 100+f.seq)
	f.rows = append(f.rows, p)
	return p, nil
}

func (f *fakeBackend) Update(ctx context.Context, id string, p author) (author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update")
	if err := f.takeFailure(); err != nil {
		return author{}, err
	}
	for i, r := range f.rows {
		if r.ID == id {
			f.rows[i] = r.Merge(p)
			return f.rows[i], nil
		}
	}
	return author{}, errors.New("not found")
}

func (f *fakeBackend) Delete(ctx context.Context, id string) (author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	if err := f.takeFailure(); err != nil {
		return author{}, err
	}
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return r, nil
		}
	}
	return author{}, errors.New("not found")
}

type recorder struct {
	notices []Notice
	states  []string
}

func newController(t *testing.T, b *fakeBackend, opts Options[author]) (*Controller[author], *recorder) {
	t.Helper()
	rec := &recorder{}
	opts.Name = "Author"
	opts.Notifier = NotifierFunc(func(n Notice) { rec.notices = append(rec.notices, n) })
	opts.OnState = func(from, to State) { rec.states = append(rec.states, from.String()+">"+to.String()) }
	c := NewController[author](b, opts)
	require.NoError(t, c.Load(context.Background()))
	return c, rec
}

func TestControllerLifecycleCreate(t *testing.T) {
	b := &fakeBackend{rows: []author{{ID: "a1", Name: "Asimov"}}}
	c, rec := newController(t, b, Options[author]{})
	assert.Equal(t, StateIdle, c.State())

	intent := Create(author{Name: "Clarke"})
	shown := c.Begin(intent)
	assert.Equal(t, StatePending, c.State())
	require.Len(t, shown, 2)
	assert.Equal(t, SentinelOptimistic, shown[1].ID)
	// confirmed list is untouched by speculation
	assert.Len(t, c.Confirmed(), 1)

	s := c.Execute(context.Background(), intent)
	require.NoError(t, s.Err)
	assert.Equal(t, "a101", s.Record.ID)
	// Execute does not touch controller state
	assert.Equal(t, StatePending, c.State())

	settled := c.Settle(s)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, []author{{ID: "a1", Name: "Asimov"}, {ID: "a101", Name: "Clarke"}}, settled)
	assert.Equal(t, settled, c.Confirmed())

	assert.Equal(t, []string{"idle>pending", "pending>settled", "settled>idle"}, rec.states)
	require.Len(t, rec.notices, 1)
	assert.Equal(t, Notice{Title: "Success", Description: "Author created!", Variant: VariantDefault}, rec.notices[0])
	assert.Equal(t, []string{"list", "create", "list"}, b.calls)
}

func TestControllerDeleteMarkThenSettle(t *testing.T) {
	b := &fakeBackend{rows: []author{{ID: "a1"}, {ID: "a2"}}}
	c, rec := newController(t, b, Options[author]{})

	intent := Delete(author{ID: "a2"})
	assert.Equal(t, []author{{ID: "a1"}, {ID: "delete"}}, c.Begin(intent))
	got := c.Settle(c.Execute(context.Background(), intent))
	assert.Equal(t, []author{{ID: "a1"}}, got)
	assert.Equal(t, "Author deleted!", rec.notices[0].Description)
}

func TestControllerDeleteRemovePolicy(t *testing.T) {
	b := &fakeBackend{rows: []author{{ID: "a1"}, {ID: "a2"}}}
	c, _ := newController(t, b, Options[author]{DeletePolicy: DeleteRemove})
	assert.Equal(t, []author{{ID: "a1"}}, c.Begin(Delete(author{ID: "a2"})))
}

func TestControllerFailureRollsBackViaRefetch(t *testing.T) {
	b := &fakeBackend{rows: []author{{ID: "a1", Name: "Asimov"}}}
	c, rec := newController(t, b, Options[author]{})

	b.failNext = errors.New("name taken")
	intent := Update(author{ID: "a1", Name: "Isaac"})
	c.Begin(intent)

	s, err := func() (Settlement[author], error) {
		s := c.Execute(context.Background(), intent)
		return s, s.Err
	}()
	require.Error(t, err)
	assert.True(t, s.Failed())
	assert.Equal(t, intent, s.Intent)

	got := c.Settle(s)
	assert.Equal(t, []author{{ID: "a1", Name: "Asimov"}}, got)
	assert.Equal(t, StateIdle, c.State())
	require.Len(t, rec.notices, 1)
	assert.Equal(t, Notice{Title: "Failed to update", Description: "name taken", Variant: VariantDestructive}, rec.notices[0])
}

func TestControllerFailureWithFailedRefetchRestoresConfirmed(t *testing.T) {
	b := &fakeBackend{rows: []author{{ID: "a1", Name: "Asimov"}}}
	c, _ := newController(t, b, Options[author]{})

	b.failNext = errors.New("boom")
	b.failList = errors.New("offline")
	intent := Create(author{Name: "Clarke"})
	require.Len(t, c.Begin(intent), 2)

	got := c.Settle(c.Execute(context.Background(), intent))
	assert.Equal(t, []author{{ID: "a1", Name: "Asimov"}}, got)
}

func TestControllerSuccessWithFailedRefetchKeepsSpeculation(t *testing.T) {
	b := &fakeBackend{rows: []author{{ID: "a1", Name: "Asimov"}}}
	c, rec := newController(t, b, Options[author]{})

	b.failList = errors.New("offline")
	intent := Create(author{Name: "Clarke"})
	c.Begin(intent)
	got := c.Settle(c.Execute(context.Background(), intent))

	require.Len(t, got, 2)
	assert.Equal(t, SentinelOptimistic, got[1].ID)
	assert.Equal(t, "Success", rec.notices[0].Title)
	assert.Len(t, c.Confirmed(), 1)
}

func TestControllerOverlappingIntentsStayPending(t *testing.T) {
	b := &fakeBackend{}
	c, _ := newController(t, b, Options[author]{})

	first := Create(author{Name: "One"})
	second := Create(author{Name: "Two"})
	c.Begin(first)
	c.Begin(second)
	assert.Equal(t, 2, c.InFlight())

	c.Settle(c.Execute(context.Background(), first))
	assert.Equal(t, StatePending, c.State())
	assert.Equal(t, 1, c.InFlight())

	got := c.Settle(c.Execute(context.Background(), second))
	assert.Equal(t, StateIdle, c.State())
	require.Len(t, got, 2)
	for _, a := range got {
		assert.False(t, IsSentinel(a.ID))
	}
}

func TestControllerPrepareDecoratesSpeculationOnly(t *testing.T) {
	b := &fakeBackend{}
	c, _ := newController(t, b, Options[author]{
		Prepare: func(a author) author {
			a.Location = "joined"
			return a
		},
	})

	intent := Create(author{Name: "Clarke"})
	shown := c.Begin(intent)
	assert.Equal(t, "joined", shown[0].Location)

	s := c.Execute(context.Background(), intent)
	assert.Equal(t, "", s.Record.Location)
}

func TestControllerExecuteIgnoresCancellationForMutation(t *testing.T) {
	b := &fakeBackend{}
	c, _ := newController(t, b, Options[author]{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := c.Execute(ctx, Create(author{Name: "Clarke"}))
	require.NoError(t, s.Err)
	assert.Len(t, b.rows, 1)
}

func TestControllerDo(t *testing.T) {
	b := &fakeBackend{rows: []author{{ID: "a1", Name: "Asimov"}}}
	c, _ := newController(t, b, Options[author]{})

	s, err := c.Do(context.Background(), Update(author{ID: "a1", Name: "Asimov", Location: "Moscow"}))
	require.NoError(t, err)
	assert.Equal(t, "Moscow", s.Record.Location)
	assert.Equal(t, []author{{ID: "a1", Name: "Asimov", Location: "Moscow"}}, c.View())

	b.failNext = errors.New("denied")
	_, err = c.Do(context.Background(), Delete(author{ID: "a1"}))
	assert.EqualError(t, err, "denied")
	assert.Len(t, c.View(), 1)
}

func TestControllerLoadError(t *testing.T) {
	b := &fakeBackend{failList: errors.New("offline")}
	c := NewController[author](b, Options[author]{Name: "Author"})
	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load author list")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "settled", StateSettled.String())
	assert.Equal(t, "State(9)", State(9).String())
}
