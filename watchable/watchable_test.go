package watchable

import (
	"testing"

	"github.com/google/uuid"
)

func TestNotifyInsertionOrder(t *testing.T) {
	t.Parallel()

	w := New[int](nil)
	var order []int
	w.Add(func(v int) { order = append(order, v*10+1) })
	w.Add(func(v int) { order = append(order, v*10+2) })
	w.Add(func(v int) { order = append(order, v*10+3) })

	w.Notify(7)

	want := []int{71, 72, 73}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestListenerPanicIsolated(t *testing.T) {
	t.Parallel()

	w := New[int](nil)
	var secondCalled bool
	w.Add(func(int) { panic("boom") })
	w.Add(func(int) { secondCalled = true })

	w.Notify(1)

	if !secondCalled {
		t.Error("second listener should still fire after the first panics")
	}
}

func TestRemoveDuringNotifyIsDeferred(t *testing.T) {
	t.Parallel()

	w := New[int](nil)
	var calls int
	var selfToken uuid.UUID
	selfToken = w.Add(func(int) {
		calls++
		w.Remove(selfToken)
	})
	w.Add(func(int) { calls++ })

	w.Notify(1)
	if calls != 2 {
		t.Fatalf("expected both listeners to fire on first pass, got %d calls", calls)
	}
	if w.Len() != 1 {
		t.Fatalf("expected self-removal to take effect after Notify, Len() = %d", w.Len())
	}

	w.Notify(2)
	if calls != 3 {
		t.Errorf("expected only the surviving listener to fire on second pass, got %d calls", calls)
	}
}

func TestRemoveUnknownTokenIsNoop(t *testing.T) {
	t.Parallel()

	w := New[int](nil)
	w.Add(func(int) {})
	w.Remove(uuid.New())
	if w.Len() != 1 {
		t.Errorf("removing an unknown token should not affect registered listeners, Len() = %d", w.Len())
	}
}

func TestAddDuringNotifyDoesNotFireThisPass(t *testing.T) {
	t.Parallel()

	w := New[int](nil)
	var calls int
	w.Add(func(int) {
		calls++
		w.Add(func(int) { calls++ })
	})

	w.Notify(1)
	if calls != 1 {
		t.Fatalf("newly added listener should not fire during the in-progress pass, calls = %d", calls)
	}

	w.Notify(2)
	if calls != 3 {
		t.Errorf("both listeners should fire on the next pass, calls = %d", calls)
	}
}
