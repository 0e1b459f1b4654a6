package module

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

type fakeModule struct {
	name    string
	rec     *recorder
	running chan struct{}
	panics  bool
}

func (m *fakeModule) Name() string { return m.name }
func (m *fakeModule) OnInit()      { m.rec.add("init " + m.name) }
func (m *fakeModule) Run(ctx context.Context) {
	close(m.running)
	if m.panics {
		panic("boom")
	}
	<-ctx.Done()
	m.rec.add("stop " + m.name)
}
func (m *fakeModule) OnDestroy() { m.rec.add("destroy " + m.name) }

func newFake(name string, rec *recorder) *fakeModule {
	return &fakeModule{name: name, rec: rec, running: make(chan struct{})}
}

func TestStaticRunOrder(t *testing.T) {
	rec := &recorder{}
	a, b := newFake("a", rec), newFake("b", rec)
	done := make(chan struct{})
	go func() {
		StaticRun([]Module{a, b}, func() { rec.add("before close") })
		close(done)
	}()
	for _, m := range []*fakeModule{a, b} {
		select {
		case <-m.running:
		case <-time.After(time.Second):
			t.Fatalf("module %s not running", m.name)
		}
	}
	CloseServer()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server not closed")
	}
	assert.Equal(t, []string{
		"init a", "init b", "before close",
		"stop b", "destroy b", "stop a", "destroy a",
	}, rec.all())
}

func TestPanicModuleStillDestroyed(t *testing.T) {
	rec := &recorder{}
	m := newFake("p", rec)
	m.panics = true
	StaticLoad([]Module{m})
	<-m.running
	Destroy()
	assert.Equal(t, []string{"init p", "destroy p"}, rec.all())
}
