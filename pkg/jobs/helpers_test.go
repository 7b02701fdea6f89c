package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fogcast/cron-runner/pkg/storage"
)

var errBoom = errors.New("boom")

// callLog records the order of job lifecycle calls across all fake jobs of a test.
type callLog struct {
	mu    sync.Mutex
	calls []string
	ticks []time.Time
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) tick(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ticks = append(l.ticks, t)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeJob struct {
	name       string
	log        *callLog
	veto       bool
	gatePanic  bool
	ok         bool
	err        error
	startPanic interface{}
	cleanupErr error
}

func (j *fakeJob) ShouldStart(context.Context, time.Time) bool {
	j.log.add(j.name + ".should_start")
	if j.gatePanic {
		panic("gate exploded")
	}
	return !j.veto
}

func (j *fakeJob) Start(_ context.Context, tickTime time.Time) (bool, error) {
	j.log.add(j.name + ".start")
	j.log.tick(tickTime)
	if j.startPanic != nil {
		panic(j.startPanic)
	}
	return j.ok, j.err
}

func (j *fakeJob) CleanUpAfterError(context.Context) error {
	j.log.add(j.name + ".cleanup")
	return j.cleanupErr
}

// descriptor registers a fresh copy of tmpl for every execution.
func descriptor(tmpl fakeJob) Descriptor {
	return Descriptor{
		Name: tmpl.name,
		New: func() (Job, error) {
			j := tmpl
			j.log.add(j.name + ".new")
			return &j, nil
		},
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type memoryWriter struct {
	mu      sync.Mutex
	batches [][]storage.Point
	err     error
}

func (w *memoryWriter) WritePoints(_ context.Context, points []storage.Point) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, append([]storage.Point(nil), points...))
	return nil
}

func (w *memoryWriter) Close() error { return nil }

func (w *memoryWriter) points() []storage.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	var all []storage.Point
	for _, b := range w.batches {
		all = append(all, b...)
	}
	return all
}
