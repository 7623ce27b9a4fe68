// Package ioengine defines the external asynchronous block-I/O substrate
// consumed by the engine's I/O Dispatcher (spec.md §6.1), and ships one
// concrete, in-process implementation of it so the engine is runnable
// without a real io_uring/AIO backend wired in.
package ioengine

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// PageSize is the alignment unit that submitted reads are rounded to.
// The engine enforces this by rounding offset/len before submission.
const PageSize = 4096

// Cookie identifies one outstanding read to its submitter.
type Cookie uint64

// Completion reports the outcome of one previously submitted read.
type Completion struct {
	Cookie Cookie
	Err    error
}

// Submitter is the external I/O substrate's interface (spec.md §6.1):
// submit_read / poll_completions. offset and len are assumed page-aligned;
// callers (the I/O Dispatcher) are responsible for rounding.
type Submitter interface {
	SubmitRead(fileID int, offset uint64, buf []byte, cookie Cookie)
	PollCompletions(max int) []Completion
	OpenFile(path string) (fileID int, err error)
	Close() error
}

// PreadSubstrate is a reference Submitter backed by a small pool of
// goroutines issuing synchronous ReadAt calls against os.File — standing
// in for a real async I/O backend (io_uring, libaio) that spec.md §6.1
// treats as externally supplied. Completions are buffered on a channel and
// drained by PollCompletions, matching the "poll, don't block" contract
// the I/O Dispatcher requires.
type PreadSubstrate struct {
	mu    sync.Mutex
	files []*os.File

	work chan preadJob
	done chan Completion
	wg   sync.WaitGroup
}

type preadJob struct {
	fileID int
	offset uint64
	buf    []byte
	cookie Cookie
}

// NewPreadSubstrate starts numWorkers goroutines servicing read requests.
func NewPreadSubstrate(numWorkers int) *PreadSubstrate {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	s := &PreadSubstrate{
		work: make(chan preadJob, numWorkers*4),
		done: make(chan Completion, numWorkers*64),
	}
	s.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go s.loop()
	}
	return s
}

func (s *PreadSubstrate) loop() {
	defer s.wg.Done()
	for job := range s.work {
		s.mu.Lock()
		f := s.files[job.fileID]
		s.mu.Unlock()
		n, err := f.ReadAt(job.buf, int64(job.offset))
		if err == nil && n != len(job.buf) {
			err = os.ErrClosed
		}
		s.done <- Completion{Cookie: job.cookie, Err: err}
	}
}

// OpenFile registers a file for reading, returning a stable file id.
func (s *PreadSubstrate) OpenFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, f)
	return len(s.files) - 1, nil
}

// SubmitRead queues an async read; never blocks the caller for the I/O
// itself (spec.md §4.3: "Returns immediately. No suspension.").
func (s *PreadSubstrate) SubmitRead(fileID int, offset uint64, buf []byte, cookie Cookie) {
	s.work <- preadJob{fileID: fileID, offset: offset, buf: buf, cookie: cookie}
}

// PollCompletions drains up to max completed reads without blocking.
func (s *PreadSubstrate) PollCompletions(max int) []Completion {
	out := make([]Completion, 0, max)
	for len(out) < max {
		select {
		case c := <-s.done:
			out = append(out, c)
		default:
			return out
		}
	}
	return out
}

// Close stops accepting work and waits for in-flight reads to drain.
func (s *PreadSubstrate) Close() error {
	close(s.work)
	s.wg.Wait()
	close(s.done)
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		log.Warn().Err(firstErr).Msg("ioengine: error closing file(s)")
	}
	return firstErr
}
