package tree

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
)

// DefaultWorkers is the number of physical cores, falling back to the
// logical CPU count when the platform does not report it.
func DefaultWorkers() int {
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// FileError records a file a scanner could not process.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Result pairs a path with the value produced for it.
type Result[T any] struct {
	Path  string
	Value T
}

// Map reads every path and applies fn to the content. Concurrent Map calls
// on one snapshot share its worker cap, so at most s.workers files are in
// flight across all of them. Results keep the order of paths. Files over the size cap
// are skipped; read and fn errors are collected, not fatal. Only context
// cancellation stops the pool early.
func Map[T any](ctx context.Context, s *Snapshot, paths []string, fn func(rel string, data []byte) (T, error)) ([]Result[T], []FileError, error) {
	type slot struct {
		val  T
		err  error
		skip bool
	}
	slots := make([]slot, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := s.workers
	if workers <= 0 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s.slots <- struct{}{}
				data, err := s.Read(paths[i])
				switch {
				case errors.Is(err, ErrTooLarge):
					slots[i].skip = true
				case err != nil:
					slots[i].err = err
				default:
					slots[i].val, slots[i].err = fn(paths[i], data)
				}
				<-s.slots
			}
		}()
	}
	var ctxErr error
feed:
	for i := range paths {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if ctxErr != nil {
		return nil, nil, ctxErr
	}

	out := make([]Result[T], 0, len(paths))
	var failed []FileError
	for i, sl := range slots {
		switch {
		case sl.skip:
		case sl.err != nil:
			failed = append(failed, FileError{Path: paths[i], Err: sl.err.Error()})
		default:
			out = append(out, Result[T]{Path: paths[i], Value: sl.val})
		}
	}
	return out, failed, nil
}
