package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watthouse/agent/control"
	"github.com/watthouse/agent/models"
	"github.com/watthouse/agent/plugin"
	"github.com/watthouse/agent/selector"
	"github.com/watthouse/agent/trigger"
)

type countingSource struct {
	mu    sync.Mutex
	count int
}

func (s *countingSource) Poll(ctx context.Context, acc models.MeasurementAccumulator, ts time.Time) error {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	acc.Push(models.MeasurementPoint{Timestamp: ts})
	return nil
}

func (s *countingSource) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type recordingOutput struct {
	mu    sync.Mutex
	count int
}

func (o *recordingOutput) Write(buf *models.MeasurementBuffer, ctx plugin.OutputContext) error {
	o.mu.Lock()
	o.count++
	o.mu.Unlock()
	return nil
}

func (o *recordingOutput) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

type fakeInstance struct {
	src *countingSource
	out *recordingOutput

	shutdownHookCalled bool
}

func (f *fakeInstance) Start(h *plugin.RegistrationHandle) error {
	spec := trigger.TimeIntervalSpec(time.Now(), 5*time.Millisecond, 5*time.Millisecond, 5*time.Millisecond)
	h.AddSource("poller", f.src, spec, plugin.PaceFast)
	h.AddOutput("sink", f.out, "test")
	h.OnShutdown(func(ctx context.Context) error {
		f.shutdownHookCalled = true
		return nil
	})
	return nil
}

func (f *fakeInstance) Stop() error { return nil }

type fakePlugin struct {
	inst *fakeInstance
}

func (p *fakePlugin) Name() string                        { return "fake" }
func (p *fakePlugin) Version() string                     { return "v0" }
func (p *fakePlugin) DefaultConfig() map[string]any        { return nil }
func (p *fakePlugin) Init(config map[string]any) (plugin.Instance, error) {
	return p.inst, nil
}

func TestAgentRunsPluginEndToEnd(t *testing.T) {
	a := New(Config{ShutdownTimeout: 5 * time.Second})

	src := &countingSource{}
	out := &recordingOutput{}
	p := &fakePlugin{inst: &fakeInstance{src: src, out: out}}
	require.NoError(t, a.LoadPlugin(p, nil))

	a.Run()
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	require.Eventually(t, func() bool {
		return out.Count() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAgentDispatchPauseStopsSource(t *testing.T) {
	a := New(Config{ShutdownTimeout: 5 * time.Second})

	src := &countingSource{}
	out := &recordingOutput{}
	p := &fakePlugin{inst: &fakeInstance{src: src, out: out}}
	require.NoError(t, a.LoadPlugin(p, nil))

	a.Run()
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	require.Eventually(t, func() bool { return src.Count() > 0 }, time.Second, 5*time.Millisecond)

	pattern := selector.MustParse("source/fake/poller")
	require.NoError(t, a.Dispatch(context.Background(), control.Command{Kind: control.CmdConfigure, Pattern: pattern, Verb: control.VerbPause}))

	time.Sleep(20 * time.Millisecond)
	before := src.Count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, src.Count(), "paused source must not keep polling")
}

func TestAgentShutdownInvokesOnPipelineShutdownHooks(t *testing.T) {
	a := New(Config{ShutdownTimeout: 5 * time.Second})

	inst := &fakeInstance{src: &countingSource{}, out: &recordingOutput{}}
	p := &fakePlugin{inst: inst}
	require.NoError(t, a.LoadPlugin(p, nil))

	a.Run()
	require.NoError(t, a.Shutdown(context.Background()))

	assert.True(t, inst.shutdownHookCalled, "OnPipelineShutdown callback must run during Shutdown")
}

func TestAgentHealthReportsHealthy(t *testing.T) {
	a := New(Config{})
	overall := a.Health().Evaluate(context.Background())
	assert.Equal(t, "healthy", string(overall.Status))
}
