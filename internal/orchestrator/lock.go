package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LockFile is created under the state dir for the duration of an apply.
const LockFile = "apply.lock"

// ErrLocked means another apply holds the work tree.
var ErrLocked = errors.New("work tree is locked by a running apply")

// workTree serialises scans and applies inside one process. Scans share it,
// an apply holds it exclusively. The lock file extends the exclusion to
// other processes.
var workTree sync.RWMutex

// Locked reports whether an apply lock file is present.
func Locked(stateDir string) bool {
	_, err := os.Stat(filepath.Join(stateDir, LockFile))
	return err == nil
}

// shareTree takes the shared lock for a scan. It fails fast when another
// process is applying.
func shareTree(stateDir string) (func(), error) {
	workTree.RLock()
	if Locked(stateDir) {
		workTree.RUnlock()
		return nil, fmt.Errorf("%w (%s)", ErrLocked, filepath.Join(stateDir, LockFile))
	}
	return workTree.RUnlock, nil
}

// lockTree takes the exclusive lock and writes the lock file. A lock file
// left by a crashed process must be removed by hand.
func lockTree(stateDir string) (func(), error) {
	workTree.Lock()
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		workTree.Unlock()
		return nil, err
	}
	path := filepath.Join(stateDir, LockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		workTree.Unlock()
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w (remove %s if no apply is running)", ErrLocked, path)
		}
		return nil, err
	}
	fmt.Fprintf(f, "pid=%d\nstarted=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	_ = f.Close()
	return func() {
		_ = os.Remove(path)
		workTree.Unlock()
	}, nil
}
