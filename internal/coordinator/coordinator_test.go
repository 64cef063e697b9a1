package coordinator

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-tracker/internal/model"
	"github.com/BuzzLyutic/task-tracker/internal/remote"
	"github.com/BuzzLyutic/task-tracker/internal/store"
	"github.com/BuzzLyutic/task-tracker/internal/testutil"
)

type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) List(ctx context.Context) ([]model.Task, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockRemote) Create(ctx context.Context, d model.TaskDraft, key string) (model.Task, error) {
	args := m.Called(ctx, d, key)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockRemote) Update(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error) {
	args := m.Called(ctx, id, p)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockRemote) Remove(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

func setup(t *testing.T, tasks ...model.Task) (*Coordinator, *MockRemote, *recorder) {
	t.Helper()

	rm := new(MockRemote)
	rec := &recorder{}
	c := New(store.New(), rm, rec, zap.NewNop())
	t.Cleanup(c.Stop)

	if tasks != nil {
		rm.On("List", mock.Anything).Return(tasks, nil).Once()
		require.NoError(t, c.Load(context.Background()))
	}
	return c, rm, rec
}

func confirmed(id int64, title string, status model.Status) model.Task {
	return model.Task{
		ID:        id,
		Title:     title,
		Status:    status,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func taskIDs(tasks []model.Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestCoordinator_Load(t *testing.T) {
	c, _, rec := setup(t, confirmed(1, "A", model.StatusTodo), confirmed(2, "B", model.StatusDone))

	assert.Equal(t, []int64{1, 2}, taskIDs(c.Snapshot()))
	assert.False(t, c.Loading())
	_, shown := c.Banner()
	assert.False(t, shown)
	assert.Empty(t, rec.all(), "a successful load is silent")
}

func TestCoordinator_LoadFailure(t *testing.T) {
	c, rm, rec := setup(t)
	rm.On("List", mock.Anything).Return([]model.Task(nil), remote.NewError(remote.KindNetwork, "connection refused"))

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, remote.KindNetwork, remote.KindOf(err))

	assert.Empty(t, c.Snapshot())
	msg, shown := c.Banner()
	assert.True(t, shown)
	assert.Equal(t, "Failed to load tasks", msg)

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.False(t, notes[0].OK)
	assert.Equal(t, OpLoad, notes[0].Op)

	c.DismissBanner()
	_, shown = c.Banner()
	assert.False(t, shown)
}

func TestCoordinator_CreateShowsOptimisticThenConfirmed(t *testing.T) {
	c, rm, rec := setup(t, []model.Task{}...)
	started := make(chan struct{})
	release := make(chan struct{})

	draft := model.TaskDraft{Title: "Buy milk"}
	rm.On("Create", mock.Anything, draft, mock.MatchedBy(func(key string) bool { return key != "" })).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(confirmed(10, "Buy milk", model.StatusTodo), nil)

	done := c.SubmitCreate(context.Background(), draft)
	<-started

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.False(t, snap[0].Confirmed(), "optimistic entry carries a temporary id")
	assert.Equal(t, "Buy milk", snap[0].Title)
	assert.Equal(t, model.StatusTodo, snap[0].Status)

	close(release)
	res := <-done
	require.NoError(t, res.Err)
	assert.Equal(t, int64(10), res.Task.ID)

	snap = c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(10), snap[0].ID)

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.True(t, notes[0].OK)
	assert.Equal(t, "Task created successfully!", notes[0].String())
}

func TestCoordinator_CreateNetworkFailureRollsBack(t *testing.T) {
	c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo))
	before := c.Snapshot()

	rm.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(model.Task{}, remote.NewError(remote.KindNetwork, "connection reset"))

	_, err := c.Create(context.Background(), model.TaskDraft{Title: "Buy milk"})
	require.Error(t, err)
	assert.Equal(t, remote.KindNetwork, remote.KindOf(err))
	assert.Equal(t, before, c.Snapshot())

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.False(t, notes[0].OK)
	assert.Equal(t, remote.KindNetwork, notes[0].Kind)
	assert.Equal(t, "Failed to create task", notes[0].Message)
}

func TestCoordinator_CreateEmptyTitleRejected(t *testing.T) {
	c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo))
	before := c.Snapshot()

	_, err := c.Create(context.Background(), model.TaskDraft{Title: "   "})
	require.Error(t, err)
	assert.Equal(t, remote.KindRejected, remote.KindOf(err))
	assert.Equal(t, before, c.Snapshot())
	rm.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "title is required", notes[0].Detail)
}

func TestCoordinator_StatusChange(t *testing.T) {
	c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo))

	rm.On("Update", mock.Anything, int64(1), model.StatusPatch(model.StatusDone)).
		Return(confirmed(1, "A", model.StatusDone), nil)

	got, err := c.SetStatus(context.Background(), 1, model.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, model.StatusDone, snap[0].Status)
	assert.Equal(t, map[model.Status]int{
		model.StatusTodo:       0,
		model.StatusInProgress: 0,
		model.StatusDone:       1,
	}, c.Counts())

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Task updated successfully!", notes[0].Message)
}

func TestCoordinator_UpdateFailureRollsBack(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind remote.Kind
	}{
		{"rejected", remote.NewError(remote.KindRejected, "bad"), remote.KindRejected},
		{"not found", remote.NewError(remote.KindNotFound, "task not found"), remote.KindNotFound},
		{"network", remote.NewError(remote.KindNetwork, "timeout"), remote.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo), confirmed(2, "B", model.StatusTodo))
			before := c.Snapshot()

			rm.On("Update", mock.Anything, int64(2), mock.Anything).Return(model.Task{}, tt.err)

			_, err := c.SetStatus(context.Background(), 2, model.StatusInProgress)
			require.Error(t, err)
			assert.Equal(t, tt.kind, remote.KindOf(err))
			assert.Equal(t, before, c.Snapshot())
			assert.Len(t, rec.all(), 1)
		})
	}
}

func TestCoordinator_UpdateInvalidMergeRejected(t *testing.T) {
	c, rm, _ := setup(t, confirmed(1, "A", model.StatusTodo))
	before := c.Snapshot()

	title := ""
	_, err := c.Update(context.Background(), 1, model.TaskPatch{Title: &title})
	require.Error(t, err)
	assert.Equal(t, remote.KindRejected, remote.KindOf(err))
	assert.Equal(t, before, c.Snapshot())
	rm.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_UpdateUnknownIDReconciles(t *testing.T) {
	c, rm, _ := setup(t, confirmed(1, "A", model.StatusTodo))

	rm.On("Update", mock.Anything, int64(7), mock.Anything).Return(confirmed(7, "elsewhere", model.StatusDone), nil)

	_, err := c.SetStatus(context.Background(), 7, model.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 7}, taskIDs(c.Snapshot()))
}

func TestCoordinator_PanickingRemoteRollsBack(t *testing.T) {
	tests := []struct {
		name   string
		expect func(rm *MockRemote)
		run    func(c *Coordinator) error
	}{
		{
			name: "create",
			expect: func(rm *MockRemote) {
				rm.On("Create", mock.Anything, mock.Anything, mock.Anything).Panic("boom")
			},
			run: func(c *Coordinator) error {
				_, err := c.Create(context.Background(), model.TaskDraft{Title: "new"})
				return err
			},
		},
		{
			name: "update",
			expect: func(rm *MockRemote) {
				rm.On("Update", mock.Anything, int64(1), mock.Anything).Panic("boom")
			},
			run: func(c *Coordinator) error {
				_, err := c.SetStatus(context.Background(), 1, model.StatusDone)
				return err
			},
		},
		{
			name: "delete",
			expect: func(rm *MockRemote) {
				rm.On("Remove", mock.Anything, int64(1)).Panic("boom")
			},
			run: func(c *Coordinator) error {
				return c.Delete(context.Background(), 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo), confirmed(2, "B", model.StatusTodo))
			before := c.Snapshot()
			tt.expect(rm)

			err := tt.run(c)
			require.Error(t, err)
			assert.Equal(t, remote.KindUnknown, remote.KindOf(err))
			assert.EqualError(t, err, "UNKNOWN: boom")
			assert.Equal(t, before, c.Snapshot())

			notes := rec.all()
			require.Len(t, notes, 1)
			assert.False(t, notes[0].OK)
		})
	}
}

func TestCoordinator_InvalidStoreAnswersRollBack(t *testing.T) {
	c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo))
	before := c.Snapshot()

	rm.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(model.Task{}, nil)
	rm.On("Update", mock.Anything, int64(1), mock.Anything).Return(confirmed(1, "A", model.Status("todo")), nil)
	rm.On("Update", mock.Anything, int64(9), mock.Anything).Return(confirmed(9, "B", model.Status("todo")), nil)

	_, err := c.Create(context.Background(), model.TaskDraft{Title: "new"})
	assert.Equal(t, remote.KindUnknown, remote.KindOf(err))

	_, err = c.SetStatus(context.Background(), 1, model.StatusDone)
	assert.Equal(t, remote.KindUnknown, remote.KindOf(err))

	_, err = c.SetStatus(context.Background(), 9, model.StatusDone)
	assert.Equal(t, remote.KindUnknown, remote.KindOf(err))

	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, map[model.Status]int{
		model.StatusTodo:       1,
		model.StatusInProgress: 0,
		model.StatusDone:       0,
	}, c.Counts())
	assert.Len(t, rec.all(), 3)
}

func TestCoordinator_LoadRefusesInvalidTasks(t *testing.T) {
	c, rm, rec := setup(t)
	rm.On("List", mock.Anything).Return([]model.Task{confirmed(1, "A", model.StatusTodo), {Title: "no id"}}, nil)

	err := c.Load(context.Background())
	assert.Equal(t, remote.KindUnknown, remote.KindOf(err))
	assert.Empty(t, c.Snapshot())
	_, shown := c.Banner()
	assert.True(t, shown)
	assert.Len(t, rec.all(), 1)
}

func TestCoordinator_MutationsOnTemporaryID(t *testing.T) {
	c, rm, rec := setup(t, []model.Task{}...)
	started := make(chan struct{})
	release := make(chan struct{})

	rm.On("Create", mock.Anything, model.TaskDraft{Title: "Buy milk"}, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(confirmed(10, "Buy milk", model.StatusTodo), nil)
	rm.On("Update", mock.Anything, int64(10), model.StatusPatch(model.StatusDone)).
		Return(confirmed(10, "Buy milk", model.StatusDone), nil)

	created := c.SubmitCreate(context.Background(), model.TaskDraft{Title: "Buy milk"})
	<-started
	tmp := c.Snapshot()[0].ID
	require.Less(t, tmp, int64(0))

	updated := c.SubmitUpdate(context.Background(), tmp, model.StatusPatch(model.StatusDone))
	close(release)

	require.NoError(t, (<-created).Err)
	res := <-updated
	require.NoError(t, res.Err)
	assert.Equal(t, int64(10), res.Task.ID)
	assert.Equal(t, model.StatusDone, c.Snapshot()[0].Status)
	rm.AssertNotCalled(t, "Update", mock.Anything, tmp, mock.Anything)
	assert.Len(t, rec.all(), 2)
}

func TestCoordinator_MutationsOnFailedCreate(t *testing.T) {
	c, rm, rec := setup(t, []model.Task{}...)
	started := make(chan struct{})
	release := make(chan struct{})

	rm.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(model.Task{}, remote.NewError(remote.KindNetwork, "down"))

	created := c.SubmitCreate(context.Background(), model.TaskDraft{Title: "Buy milk"})
	<-started
	tmp := c.Snapshot()[0].ID

	deleted := c.SubmitDelete(context.Background(), tmp)
	close(release)

	require.Error(t, (<-created).Err)
	err := (<-deleted).Err
	assert.Equal(t, remote.KindNotFound, remote.KindOf(err))
	assert.Empty(t, c.Snapshot())
	rm.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	assert.Len(t, rec.all(), 2)
}

func TestCoordinator_Delete(t *testing.T) {
	c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo), confirmed(2, "B", model.StatusDone))

	rm.On("Remove", mock.Anything, int64(1)).Return(nil)

	require.NoError(t, c.Delete(context.Background(), 1))
	assert.Equal(t, []int64{2}, taskIDs(c.Snapshot()))

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Task deleted successfully!", notes[0].Message)
	assert.Equal(t, "A", notes[0].Title)
}

func TestCoordinator_DeleteFailureRestoresPosition(t *testing.T) {
	c, rm, _ := setup(t,
		confirmed(1, "A", model.StatusTodo),
		confirmed(2, "B", model.StatusTodo),
		confirmed(3, "C", model.StatusTodo),
	)
	before := c.Snapshot()

	rm.On("Remove", mock.Anything, int64(2)).Return(remote.NewError(remote.KindUnknown, "boom"))

	err := c.Delete(context.Background(), 2)
	require.Error(t, err)
	assert.Equal(t, before, c.Snapshot())
}

func TestCoordinator_DeleteUnknownID(t *testing.T) {
	c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo))
	before := c.Snapshot()

	rm.On("Remove", mock.Anything, int64(42)).Return(remote.NewError(remote.KindNotFound, "task not found"))

	err := c.Delete(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, remote.KindNotFound, remote.KindOf(err))
	assert.Equal(t, before, c.Snapshot())

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, remote.KindNotFound, notes[0].Kind)
}

func TestCoordinator_SameIDSerialized(t *testing.T) {
	c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo))
	started := make(chan struct{})
	release := make(chan struct{})

	first, second := "first", "second"
	rm.On("Update", mock.Anything, int64(1), model.TaskPatch{Title: &first}).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(model.Task{}, remote.NewError(remote.KindNetwork, "timeout")).Once()
	rm.On("Update", mock.Anything, int64(1), model.TaskPatch{Title: &second}).
		Return(confirmed(1, "second", model.StatusTodo), nil).Once()

	r1 := c.SubmitUpdate(context.Background(), 1, model.TaskPatch{Title: &first})
	<-started
	r2 := c.SubmitUpdate(context.Background(), 1, model.TaskPatch{Title: &second})

	// the second update waits for the first to resolve
	time.Sleep(20 * time.Millisecond)
	rm.AssertNumberOfCalls(t, "Update", 1)
	assert.Equal(t, "first", c.Snapshot()[0].Title)

	close(release)
	require.Error(t, (<-r1).Err)
	require.NoError(t, (<-r2).Err)

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "second", snap[0].Title, "a late rollback must not clobber the newer update")

	notes := rec.all()
	require.Len(t, notes, 2)
	assert.False(t, notes[0].OK)
	assert.True(t, notes[1].OK)
}

func TestCoordinator_DistinctIDsRunConcurrently(t *testing.T) {
	c, rm, _ := setup(t, confirmed(1, "A", model.StatusTodo), confirmed(2, "B", model.StatusTodo))
	release := make(chan struct{})

	rm.On("Update", mock.Anything, int64(1), mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(confirmed(1, "A", model.StatusDone), nil)
	rm.On("Update", mock.Anything, int64(2), mock.Anything).
		Return(confirmed(2, "B", model.StatusDone), nil)

	r1 := c.SubmitUpdate(context.Background(), 1, model.StatusPatch(model.StatusDone))
	_, err := c.SetStatus(context.Background(), 2, model.StatusDone)
	require.NoError(t, err, "task 2 must not wait behind task 1")

	close(release)
	require.NoError(t, (<-r1).Err)
	assert.Equal(t, 2, c.Counts()[model.StatusDone])
}

func TestCoordinator_IgnoresCallerCancellation(t *testing.T) {
	c, rm, _ := setup(t, confirmed(1, "A", model.StatusTodo))

	rm.On("Remove", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), int64(1)).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Delete(ctx, 1))
	assert.Empty(t, c.Snapshot())
}

func TestCoordinator_OneNotificationPerOperation(t *testing.T) {
	c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo), confirmed(2, "B", model.StatusTodo))

	rm.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(confirmed(3, "C", model.StatusTodo), nil)
	rm.On("Update", mock.Anything, int64(1), mock.Anything).Return(model.Task{}, remote.NewError(remote.KindRejected, "no"))
	rm.On("Update", mock.Anything, int64(2), mock.Anything).Return(confirmed(2, "B", model.StatusDone), nil)
	rm.On("Remove", mock.Anything, int64(2)).Return(nil)

	results := []<-chan Result{
		c.SubmitCreate(context.Background(), model.TaskDraft{Title: "C"}),
		c.SubmitCreate(context.Background(), model.TaskDraft{}),
		c.SubmitUpdate(context.Background(), 1, model.StatusPatch(model.StatusDone)),
		c.SubmitUpdate(context.Background(), 2, model.StatusPatch(model.StatusDone)),
		c.SubmitDelete(context.Background(), 2),
	}
	for _, r := range results {
		<-r
	}

	assert.Len(t, rec.all(), len(results))
	assert.Equal(t, []int64{1, 3}, taskIDs(c.Snapshot()))
}

func TestCoordinator_RandomFailuresLeaveSnapshotIntact(t *testing.T) {
	seed := []model.Task{
		confirmed(1, "A", model.StatusTodo),
		confirmed(2, "B", model.StatusInProgress),
		confirmed(3, "C", model.StatusDone),
		confirmed(4, "D", model.StatusTodo),
	}
	c, rm, rec := setup(t, seed...)
	before := c.Snapshot()

	fail := remote.NewError(remote.KindNetwork, "down")
	rm.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(model.Task{}, fail)
	rm.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(model.Task{}, fail)
	rm.On("Remove", mock.Anything, mock.Anything).Return(fail)

	rng := rand.New(rand.NewSource(7))
	var results []<-chan Result
	for i := 0; i < 200; i++ {
		id := int64(rng.Intn(5) + 1)
		switch rng.Intn(3) {
		case 0:
			results = append(results, c.SubmitCreate(context.Background(), model.TaskDraft{Title: "new"}))
		case 1:
			results = append(results, c.SubmitUpdate(context.Background(), id, model.StatusPatch(model.Statuses[rng.Intn(3)])))
		default:
			results = append(results, c.SubmitDelete(context.Background(), id))
		}
	}
	for _, r := range results {
		assert.Error(t, (<-r).Err)
	}

	assert.Equal(t, before, c.Snapshot())
	assert.Len(t, rec.all(), len(results))
}

func TestCoordinator_StopRefusesNewMutations(t *testing.T) {
	c, rm, rec := setup(t, confirmed(1, "A", model.StatusTodo))
	c.Stop()

	err := c.Delete(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, remote.KindUnknown, remote.KindOf(err))
	assert.Len(t, c.Snapshot(), 1)
	assert.Len(t, rec.all(), 1)
	rm.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestChanNotifier_DropsWhenFull(t *testing.T) {
	n := NewChanNotifier(1, zap.NewNop())
	n.Notify(success(OpCreate, 1, "A"))
	n.Notify(success(OpCreate, 2, "B"))

	require.Len(t, n.C, 1)
	got := <-n.C
	assert.Equal(t, int64(1), got.TaskID)
}

func TestNotification_String(t *testing.T) {
	assert.Equal(t, "Task deleted successfully!", success(OpDelete, 1, "A").String())
	assert.Equal(t, "Failed to update task (REJECTED): title is required",
		failure(OpUpdate, 1, "A", remote.NewError(remote.KindRejected, "title is required")).String())
	assert.Equal(t, "Failed to load tasks (UNKNOWN)", failure(OpLoad, 0, "", nil).String())
}

func TestLoading(t *testing.T) {
	c, rm, _ := setup(t)
	release := make(chan struct{})
	rm.On("List", mock.Anything).Run(func(mock.Arguments) { <-release }).Return([]model.Task{}, nil)

	go func() { _ = c.Load(context.Background()) }()

	assert.True(t, testutil.WaitForCondition(t, time.Second, c.Loading))
	close(release)
	assert.True(t, testutil.WaitForCondition(t, time.Second, func() bool { return !c.Loading() }))
}
