package controlloop

import (
	"context"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestRunFlushesOnTimeout(t *testing.T) {
	l := New(20*time.Millisecond, nil)

	var count int32
	l.OnFlush(func() { atomic.AddInt32(&count, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	time.Sleep(70 * time.Millisecond)
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if atomic.LoadInt32(&count) < 2 {
		t.Fatalf("expected at least 2 flushes, got %d", count)
	}
}

func TestRunTerminatesOnSigterm(t *testing.T) {
	l := New(time.Hour, nil)

	ctx := context.Background()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate on SIGTERM")
	}
}

func TestRunReloadsOnSighup(t *testing.T) {
	l := New(time.Hour, nil)

	var mu sync.Mutex
	reloaded := 0
	l.OnReload(func() error {
		mu.Lock()
		reloaded++
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("kill: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-errCh

	mu.Lock()
	defer mu.Unlock()
	if reloaded != 1 {
		t.Fatalf("reloaded = %d, want 1", reloaded)
	}
}

func TestRunForceRotatesOnSigusr1(t *testing.T) {
	l := New(time.Hour, nil)

	var rotated int32
	l.OnForceRotate(func() { atomic.AddInt32(&rotated, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-errCh

	if atomic.LoadInt32(&rotated) != 1 {
		t.Fatalf("rotated = %d, want 1", rotated)
	}
}

func TestRunIgnoresSigusr1WithNoHookRegistered(t *testing.T) {
	l := New(time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunIgnoresSigchld(t *testing.T) {
	l := New(time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGCHLD); err != nil {
		t.Fatalf("kill: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
