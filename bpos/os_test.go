package bpos

import (
	"testing"
	"time"
)

func TestWaitOnNoWaitReturnsImmediately(t *testing.T) {
	l := CreateLock()
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	if l.WaitOn(NoWait) {
		t.Fatal("expected WaitOn(NoWait) to report timed out")
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("expected WaitOn(NoWait) to return immediately, took %v", elapsed)
	}
}

func TestWaitOnForeverUnblocksOnSignal(t *testing.T) {
	l := CreateLock()
	done := make(chan bool, 1)

	go func() {
		l.Lock()
		defer l.Unlock()
		done <- l.WaitOn(Forever)
	}()

	time.Sleep(20 * time.Millisecond)
	l.Lock()
	l.Signal()
	l.Unlock()

	select {
	case woken := <-done:
		if !woken {
			t.Fatal("expected WaitOn(Forever) to report woken, not timed out")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitOn(Forever) never returned after Signal")
	}
}

func TestWaitOnBoundedTimesOutWithoutSignal(t *testing.T) {
	l := CreateLock()
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	woken := l.WaitOn(20)
	if woken {
		t.Fatal("expected a bounded wait with no Signal to report timed out")
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("expected WaitOn to actually wait, elapsed %v", elapsed)
	}
}

func TestWaitOnBoundedWakesEarlyOnSignal(t *testing.T) {
	l := CreateLock()
	done := make(chan bool, 1)

	go func() {
		l.Lock()
		defer l.Unlock()
		done <- l.WaitOn(5000)
	}()

	time.Sleep(20 * time.Millisecond)
	l.Lock()
	l.Signal()
	l.Unlock()

	select {
	case woken := <-done:
		if !woken {
			t.Fatal("expected an early Signal to report woken, not timed out")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitOn never returned after an early Signal")
	}
}
