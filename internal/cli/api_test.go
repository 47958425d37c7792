package cli

import (
	stdcontext "context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paintersrp/intthread/internal/api"
	"github.com/Paintersrp/intthread/internal/config"
)

func deployForTest(t *testing.T, body string) (*context, *deployment) {
	t.Helper()
	doc, err := config.Parse([]byte(body))
	require.NoError(t, err)

	ctx := &context{}
	dep, err := ctx.deploy(doc)
	require.NoError(t, err)
	ctx.setDeployment(dep)
	t.Cleanup(func() {
		ctx.clearDeployment(dep)
		_ = dep.teardown()
	})
	return ctx, dep
}

func TestControlAPIWithoutDeployment(t *testing.T) {
	ctrl := NewControlAPI(&context{})
	_, err := ctrl.Status(stdcontext.Background())
	require.ErrorIs(t, err, api.ErrRegistryClosed)

	var nilCtrl *ControlAPI
	_, err = nilCtrl.Thread(stdcontext.Background(), 1)
	require.ErrorIs(t, err, api.ErrRegistryClosed)
}

func TestControlAPIStatusAndThread(t *testing.T) {
	ctx, _ := deployForTest(t, `
threads:
  - id: 2
    name: second
  - id: 1
    name: first
`)
	ctrl := NewControlAPI(ctx)

	status, err := ctrl.Status(stdcontext.Background())
	require.NoError(t, err)
	require.Len(t, status.Threads, 2)
	assert.Equal(t, uint64(1), status.Threads[0].ID)
	assert.Equal(t, "first", status.Threads[0].Name)
	assert.Equal(t, "not-started", status.Threads[0].State)
	assert.True(t, status.Threads[0].Owned)

	report, err := ctrl.Thread(stdcontext.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "second", report.Name)

	_, err = ctrl.Thread(stdcontext.Background(), 9)
	require.ErrorIs(t, err, api.ErrUnknownThread)
}

func TestControlAPIActions(t *testing.T) {
	ctx, _ := deployForTest(t, `
threads:
  - id: 1
    interval: 10ms
`)
	ctrl := NewControlAPI(ctx)
	bg := stdcontext.Background()

	_, err := ctrl.Apply(bg, 1, api.ActionInterrupt)
	require.ErrorIs(t, err, api.ErrNotStarted)
	_, err = ctrl.Apply(bg, 1, api.ActionJoin)
	require.ErrorIs(t, err, api.ErrNotStarted)

	res, err := ctrl.Apply(bg, 1, api.ActionStart)
	require.NoError(t, err)
	assert.Equal(t, api.ActionStart, res.Action)
	assert.NotZero(t, res.Thread.NativeID)

	res, err = ctrl.Apply(bg, 1, api.ActionSuspend)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		report, err := ctrl.Thread(bg, 1)
		return err == nil && report.State == "suspended"
	}, time.Second, 5*time.Millisecond)

	_, err = ctrl.Apply(bg, 1, api.ActionResume)
	require.NoError(t, err)

	res, err = ctrl.Apply(bg, 1, api.ActionInterrupt)
	require.NoError(t, err)
	assert.True(t, res.Thread.Interrupted)

	res, err = ctrl.Apply(bg, 1, api.ActionJoin)
	require.NoError(t, err)
	assert.Equal(t, "exited", res.Thread.State)
	assert.Equal(t, 130, res.Thread.StatusCode)

	_, err = ctrl.Apply(bg, 1, api.Action("explode"))
	require.ErrorIs(t, err, api.ErrUnknownAction)
}

func TestControlAPIJoinHonoursContext(t *testing.T) {
	ctx, dep := deployForTest(t, `
threads:
  - id: 1
    interval: 10ms
`)
	require.NoError(t, dep.startAll())
	ctrl := NewControlAPI(ctx)

	joinCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := ctrl.Apply(joinCtx, 1, api.ActionJoin)
	require.ErrorIs(t, err, stdcontext.DeadlineExceeded)

	report, err := ctrl.Thread(stdcontext.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "running", report.State)

	require.NoError(t, dep.stop())
}

func TestDeploymentTeardownClosesRegistry(t *testing.T) {
	doc, err := config.Parse([]byte(`
threads:
  - id: 1
    interval: 10ms
  - id: 2
    worker: blocking
    hold: 1m
    backend: signal
`))
	require.NoError(t, err)

	ctx := &context{}
	dep, err := ctx.deploy(doc)
	require.NoError(t, err)
	require.NoError(t, dep.startAll())

	done := make(chan error, 1)
	go func() { done <- dep.teardown() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("teardown did not finish")
	}
	assert.Zero(t, dep.reg.Len())
	require.ErrorIs(t, dep.reg.Start(1), api.ErrRegistryClosed)
}

func TestDeployRejectsUnknownBackend(t *testing.T) {
	doc, err := config.Parse([]byte(`threads: [{id: 1}]`))
	require.NoError(t, err)

	ctx := &context{}
	ctx.env.Backend = "quantum"
	_, err = ctx.deploy(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thread-1")
}
