package storage

import (
	"os"
	"sync"
	"syscall"
)

// fileLock pairs an in-process mutex with an OS flock on a sidecar
// .lock file. The mutex serializes goroutines; the flock serializes
// processes sharing the state directory.
type fileLock struct {
	path string

	mu   sync.Mutex
	file *os.File
}

func (l *fileLock) acquire() error {
	l.mu.Lock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		l.mu.Unlock()
		return err
	}
	l.file = f
	return nil
}

func (l *fileLock) release() {
	if l.file != nil {
		syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		l.file.Close()
		os.Remove(l.path)
		l.file = nil
	}
	l.mu.Unlock()
}
