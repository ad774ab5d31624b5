package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

// Locker serializes registry transactions across processes.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// FileLock implements Locker with an exclusively created lock file. Acquire
// polls until the file can be created or the timeout elapses; the returned
// release removes the file and must run on every exit path.
type FileLock struct {
	path     string
	timeout  time.Duration
	interval time.Duration
}

const defaultLockInterval = 50 * time.Millisecond

func NewFileLock(dir string, timeout time.Duration) *FileLock {
	return &FileLock{
		path:     filepath.Join(dir, "registry.lock"),
		timeout:  timeout,
		interval: defaultLockInterval,
	}
}

func (l *FileLock) Acquire(ctx context.Context) (func(), error) {
	deadline := time.Now().Add(l.timeout)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { _ = os.Remove(l.path) }, nil
		}
		if !os.IsExist(err) {
			return nil, cerr.NewError(cerr.Internal, "failed to create registry lock", err)
		}
		if time.Now().After(deadline) {
			return nil, cerr.NewError(cerr.LockTimeout, fmt.Sprintf("registry lock %s held for longer than %s", l.path, l.timeout), nil)
		}
		select {
		case <-ctx.Done():
			return nil, cerr.NewError(cerr.LockTimeout, "context cancelled while waiting for registry lock", ctx.Err())
		case <-time.After(l.interval):
		}
	}
}

// NopLock is a Locker for single-process deployments (e.g. an S3-backed
// registry owned by one daemon) where in-process serialization suffices.
type NopLock struct{}

func (NopLock) Acquire(context.Context) (func(), error) {
	return func() {}, nil
}
