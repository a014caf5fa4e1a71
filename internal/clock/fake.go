package clock

import (
	"sync"
	"time"
)

// Fake is a virtual clock. Time only moves through Advance and Set, and due
// tasks run on the goroutine that calls Advance.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	tasks  []*fakeTask
	nextID uint64
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Every(interval time.Duration, fn func()) Task {
	if interval <= 0 {
		panic("clock: interval must be positive")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTask{
		clock:    f,
		id:       f.nextID,
		interval: interval,
		next:     f.now.Add(interval),
		fn:       fn,
	}
	f.nextID++
	f.tasks = append(f.tasks, t)
	return t
}

// Advance moves time forward by d, running every task that falls due in
// timestamp order. Tasks due at the same instant run in creation order.
// Callbacks may create or stop tasks.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	end := f.now.Add(d)
	for {
		t := f.nextDue(end)
		if t == nil {
			break
		}
		f.now = t.next
		t.next = t.next.Add(t.interval)
		f.mu.Unlock()
		t.fn()
		f.mu.Lock()
	}
	f.now = end
	f.mu.Unlock()
}

// Set jumps to t without running any task.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
	for _, task := range f.tasks {
		if task.next.Before(t) || task.next.Equal(t) {
			task.next = t.Add(task.interval)
		}
	}
}

// ActiveTasks reports how many tasks have not been stopped.
func (f *Fake) ActiveTasks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

// nextDue must be called with mu held.
func (f *Fake) nextDue(end time.Time) *fakeTask {
	var due *fakeTask
	for _, t := range f.tasks {
		if t.next.After(end) {
			continue
		}
		if due == nil || t.next.Before(due.next) || (t.next.Equal(due.next) && t.id < due.id) {
			due = t
		}
	}
	return due
}

func (f *Fake) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.id == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return
		}
	}
}

type fakeTask struct {
	clock    *Fake
	id       uint64
	interval time.Duration
	next     time.Time
	fn       func()
}

func (t *fakeTask) Stop() {
	t.clock.remove(t.id)
}
