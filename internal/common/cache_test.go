package common

import (
	"sync"
	"testing"
	"time"
)

func TestSlot_EmptyIsNotFresh(t *testing.T) {
	slot := NewSlot[string](time.Minute)
	if slot.IsFresh() {
		t.Error("empty slot reported fresh")
	}
	if _, ok := slot.Get(); ok {
		t.Error("empty slot returned a payload")
	}
	if !slot.FetchedAt().IsZero() {
		t.Error("empty slot has a non-zero fetch time")
	}
}

func TestSlot_GetWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	slot := NewSlot[string](time.Minute)
	slot.SetClock(func() time.Time { return now })

	slot.Set("payload-a")

	// Same payload for repeated reads with no intervening Set
	for i := 0; i < 3; i++ {
		got, ok := slot.Get()
		if !ok || got != "payload-a" {
			t.Fatalf("read %d = (%q, %v), want (payload-a, true)", i, got, ok)
		}
	}

	now = now.Add(59 * time.Second)
	if _, ok := slot.Get(); !ok {
		t.Error("payload expired before TTL elapsed")
	}

	now = now.Add(2 * time.Second)
	if _, ok := slot.Get(); ok {
		t.Error("payload still served after TTL elapsed")
	}
	if slot.IsFresh() {
		t.Error("slot fresh after TTL elapsed")
	}
}

func TestSlot_SetReplacesWholesale(t *testing.T) {
	slot := NewSlot[[]int](time.Minute)
	slot.Set([]int{1, 2, 3})
	slot.Set([]int{4})

	got, ok := slot.Get()
	if !ok || len(got) != 1 || got[0] != 4 {
		t.Errorf("Get = (%v, %v), want ([4], true)", got, ok)
	}
}

func TestSlot_ZeroTTLFallsBackToDefault(t *testing.T) {
	slot := NewSlot[int](0)
	slot.Set(42)
	if _, ok := slot.Get(); !ok {
		t.Error("slot with defaulted TTL rejected an immediate read")
	}
}

// Readers run against a writer that keeps swapping payloads. Every read
// must observe one complete payload, never a torn mix.
func TestSlot_ConcurrentReadersDuringSwap(t *testing.T) {
	type snapshot struct {
		id   int
		rows []int
	}
	build := func(id int) *snapshot {
		rows := make([]int, 64)
		for i := range rows {
			rows[i] = id
		}
		return &snapshot{id: id, rows: rows}
	}

	slot := NewSlot[*snapshot](time.Minute)
	slot.Set(build(0))

	done := make(chan struct{})
	writerStopped := make(chan struct{})
	go func() {
		defer close(writerStopped)
		for i := 1; ; i++ {
			select {
			case <-done:
				return
			default:
				slot.Set(build(i))
			}
		}
	}()

	var readers sync.WaitGroup
	for r := 0; r < 8; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 2000; i++ {
				snap, ok := slot.Get()
				if !ok {
					t.Error("read missed during concurrent swaps")
					return
				}
				for _, v := range snap.rows {
					if v != snap.id {
						t.Errorf("torn read: row %d inside snapshot %d", v, snap.id)
						return
					}
				}
			}
		}()
	}

	readers.Wait()
	close(done)
	<-writerStopped
}
