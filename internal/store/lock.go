package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// funlock releases a lock file; swapped out in tests.
var funlock = unlockFile

// Locker serializes installs of one hash, within the process through a
// keyed mutex and across processes through a lock file per hash.
type Locker struct {
	dir    string
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{} // holds a token while the key is locked
	refs int
}

// NewLocker returns a Locker keeping lock files in dir. An empty dir only
// locks within the process. A nil logger discards messages.
func NewLocker(dir string, logger *log.Logger) *Locker {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Locker{dir: dir, logger: logger, locks: make(map[string]*keyLock)}
}

func (l *Locker) acquire(hash string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := l.locks[hash]
	if k == nil {
		k = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[hash] = k
	}
	k.refs++
	return k
}

func (l *Locker) release(hash string, k *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, hash)
	}
}

// Lock blocks until hash is locked or ctx is done. The returned function
// releases the lock.
func (l *Locker) Lock(ctx context.Context, hash string) (unlock func(), err error) {
	k := l.acquire(hash)
	select {
	case k.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(hash, k)
		return nil, ctx.Err()
	}
	unlockKey := func() {
		<-k.ch
		l.release(hash, k)
	}
	if l.dir == "" {
		return unlockKey, nil
	}

	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		unlockKey()
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(l.dir, hash+".lock"), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		unlockKey()
		return nil, err
	}
	if err := lockFile(f); err != nil {
		f.Close()
		unlockKey()
		return nil, fmt.Errorf("failed to lock %s: %w", hash, err)
	}
	return func() {
		if err := funlock(f); err != nil {
			l.logger.Warn("failed to release lock file", "hash", hash, "err", err)
		}
		if err := f.Close(); err != nil {
			l.logger.Warn("failed to close lock file", "hash", hash, "err", err)
		}
		unlockKey()
	}, nil
}
