package msgloop

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoBeforeStart(t *testing.T) {
	l := New(Options{})
	if err := l.Do(func() {}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Do() error = %v, want ErrNotRunning", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop() on stopped loop error = %v", err)
	}
}

func TestDoRunsSeriallyAndOnExitRuns(t *testing.T) {
	var exited atomic.Bool
	l := New(Options{OnExit: func() { exited.Store(true) }})
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := l.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	counter := 0
	done := make(chan struct{})
	for range 4 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 25 {
				if err := l.Do(func() { counter++ }); err != nil {
					t.Errorf("Do() error = %v", err)
				}
			}
		}()
	}
	for range 4 {
		<-done
	}
	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}

	if err := l.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !exited.Load() {
		t.Fatal("OnExit did not run")
	}
	if err := l.Do(func() {}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Do() after Stop error = %v, want ErrNotRunning", err)
	}
}

func TestDoRecoversPanic(t *testing.T) {
	l := New(Options{})
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop()

	if err := l.Do(func() { panic("boom") }); err == nil {
		t.Fatal("Do() error = nil, want panic error")
	}
	ran := false
	if err := l.Do(func() { ran = true }); err != nil || !ran {
		t.Fatalf("loop unusable after panic: err=%v ran=%v", err, ran)
	}
}

func TestPostHotkeyDeliversOnLoop(t *testing.T) {
	got := make(chan int32, 1)
	l := New(Options{OnHotkey: func(id int32) { got <- id }})
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop()

	if err := l.PostHotkey(1234); err != nil {
		t.Fatalf("PostHotkey() error = %v", err)
	}
	select {
	case id := <-got:
		if id != 1234 {
			t.Fatalf("OnHotkey id = %d, want 1234", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnHotkey not called")
	}
}
