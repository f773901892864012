package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrSerializerClosed = errors.New("write serializer closed")

type writeJob struct {
	fn     func() error
	result chan error
}

// WriteSerializer is a single execution lane: submitted writes run one at a
// time, in the order their submitters reached Submit. Each submitter gets the
// outcome of its own write; a failed or panicking write does not stop the lane.
type WriteSerializer struct {
	jobs chan writeJob
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func NewWriteSerializer() *WriteSerializer {
	s := &WriteSerializer{
		jobs: make(chan writeJob),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *WriteSerializer) run() {
	defer close(s.done)
	for {
		select {
		case job := <-s.jobs:
			job.result <- runWrite(job.fn)
		case <-s.quit:
			return
		}
	}
}

func runWrite(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write panicked: %v", r)
		}
	}()
	return fn()
}

// Submit queues fn and blocks until it has run, returning its error.
// ctx only bounds the wait for a turn; an accepted write always reports back.
func (s *WriteSerializer) Submit(ctx context.Context, fn func() error) error {
	job := writeJob{fn: fn, result: make(chan error, 1)}

	select {
	case s.jobs <- job:
	case <-s.quit:
		return ErrSerializerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-job.result
}

// Close stops the lane after the write in flight, if any, has finished.
func (s *WriteSerializer) Close() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
}

// one lane per file per process
var lanes = struct {
	sync.Mutex
	m map[string]*sharedLane
}{m: make(map[string]*sharedLane)}

type sharedLane struct {
	serializer *WriteSerializer
	refs       int
}

func acquireLane(path string) *WriteSerializer {
	lanes.Lock()
	defer lanes.Unlock()

	l, ok := lanes.m[path]
	if !ok {
		l = &sharedLane{serializer: NewWriteSerializer()}
		lanes.m[path] = l
	}
	l.refs++
	return l.serializer
}

func releaseLane(path string) {
	lanes.Lock()
	defer lanes.Unlock()

	l, ok := lanes.m[path]
	if !ok {
		return
	}
	l.refs--
	if l.refs > 0 {
		return
	}
	delete(lanes.m, path)
	l.serializer.Close()
}
