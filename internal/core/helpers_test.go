package core

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// fakeOps is a test backend. Read blocks until the file is restarted,
// Close counts calls, and AdvLock records every request.
type fakeOps struct {
	BadOps

	closeErr error

	mu       sync.Mutex
	closes   int
	restarts int
	locks    []string

	// entered is closed the first time Read blocks.
	entered   chan struct{}
	enterOnce sync.Once
	// restarted is closed by the first Restart.
	restarted   chan struct{}
	restartOnce sync.Once
}

func newFakeOps() *fakeOps {
	return &fakeOps{entered: make(chan struct{}), restarted: make(chan struct{})}
}

func (o *fakeOps) Read(*File, *int64, []byte) (int, error) {
	o.enterOnce.Do(func() { close(o.entered) })
	<-o.restarted
	return 0, ErrRestart
}

func (o *fakeOps) Poll(_ *File, events PollEvents) PollEvents { return events & PollIn }

func (o *fakeOps) Restart(*File) {
	o.mu.Lock()
	o.restarts++
	o.mu.Unlock()
	o.restartOnce.Do(func() { close(o.restarted) })
}

func (o *fakeOps) Close(*File) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes++
	return o.closeErr
}

func (o *fakeOps) closeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closes
}

func (o *fakeOps) restartCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.restarts
}

// lockingOps is a fakeOps that also implements AdvisoryLocker.
type lockingOps struct {
	*fakeOps
}

func (o lockingOps) AdvLock(_ *File, owner any, op LockOp, kind LockKind) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	who := "file"
	if _, ok := owner.(*Process); ok {
		who = "process"
	}
	o.locks = append(o.locks, fmt.Sprintf("%s:%s:%d", lockKindName(kind), who, op))
	return nil
}

func (o lockingOps) lockLog() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.locks...)
}

func lockKindName(k LockKind) string {
	if k == LockPOSIX {
		return "posix"
	}
	return "flock"
}

// metricsSnapshot is a copy of the counts held by recordingMetrics.
type metricsSnapshot struct {
	allocated int
	closed    int
	grown     [][2]int
	retries   int
	drains    int
	limits    map[string]int
	openFiles int
}

// recordingMetrics counts recorder calls.
type recordingMetrics struct {
	mu sync.Mutex
	s  metricsSnapshot
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{s: metricsSnapshot{limits: make(map[string]int)}}
}

func (m *recordingMetrics) DescriptorAllocated() { m.mu.Lock(); m.s.allocated++; m.mu.Unlock() }
func (m *recordingMetrics) DescriptorClosed()    { m.mu.Lock(); m.s.closed++; m.mu.Unlock() }
func (m *recordingMetrics) GrowRetried()         { m.mu.Lock(); m.s.retries++; m.mu.Unlock() }
func (m *recordingMetrics) CloseDrained()        { m.mu.Lock(); m.s.drains++; m.mu.Unlock() }
func (m *recordingMetrics) SetOpenFiles(n int)   { m.mu.Lock(); m.s.openFiles = n; m.mu.Unlock() }

func (m *recordingMetrics) TableGrown(oldCap, newCap int) {
	m.mu.Lock()
	m.s.grown = append(m.s.grown, [2]int{oldCap, newCap})
	m.mu.Unlock()
}

func (m *recordingMetrics) LimitHit(kind string) {
	m.mu.Lock()
	m.s.limits[kind]++
	m.mu.Unlock()
}

func (m *recordingMetrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.s
	out.grown = append([][2]int(nil), m.s.grown...)
	out.limits = make(map[string]int, len(m.s.limits))
	for k, v := range m.s.limits {
		out.limits[k] = v
	}
	return out
}

func testConfig() SystemConfig {
	return SystemConfig{MaxFiles: 4096, ProcessLimit: 1024}
}

func newTestSystem(t *testing.T) *System {
	t.Helper()
	return NewSystem(testConfig())
}

func newTestProcess(t *testing.T, sys *System) *Process {
	t.Helper()
	p, err := sys.NewProcess(Cred{UID: 1000, GID: 1000})
	if err != nil {
		t.Fatalf("NewProcess(): %v", err)
	}
	return p
}

// openFake opens a fakeOps file of type typ in p.
func openFake(t *testing.T, p *Process, typ FileType, dflags DescriptorFlags) (int, *File, *fakeOps) {
	t.Helper()
	ops := newFakeOps()
	fd, f, err := p.Open(ops, typ, FlagRead|FlagWrite, dflags)
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	return fd, f, ops
}

// requirePanicContains calls fn and verifies it panics with a message
// containing wantSubstr.
func requirePanicContains(t *testing.T, fn func(), wantSubstr string) {
	t.Helper()

	var recovered string
	func() {
		defer func() {
			if r := recover(); r != nil {
				recovered = fmt.Sprint(r)
			}
		}()
		fn()
	}()

	if recovered == "" {
		t.Fatal("expected panic, got none")
	}

	if !strings.Contains(recovered, wantSubstr) {
		t.Errorf("panic message %q does not contain %q", recovered, wantSubstr)
	}
}

// openFDs returns the descriptor numbers listed for p.
func openFDs(p *Process) []int {
	var fds []int
	for _, d := range p.Descriptors() {
		fds = append(fds, d.FD)
	}
	return fds
}
