package agent

import "testing"

func TestQueueFIFO(t *testing.T) {
	var q Queue
	q.Push("T1")
	q.Push("T2")
	q.Push("T3")

	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}

	for _, want := range []string{"T1", "T2", "T3"} {
		head, ok := q.Peek()
		if !ok || head != want {
			t.Fatalf("expected head %s, got %s (ok=%v)", want, head, ok)
		}
		popped, ok := q.Pop()
		if !ok || popped != want {
			t.Fatalf("expected pop %s, got %s (ok=%v)", want, popped, ok)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("pop on empty queue reported ok")
	}
	if _, ok := q.Peek(); ok {
		t.Error("peek on empty queue reported ok")
	}
}

func TestQueueContains(t *testing.T) {
	var q Queue
	q.Push("T1")
	if !q.Contains("T1") {
		t.Error("expected T1 in queue")
	}
	if q.Contains("T2") {
		t.Error("did not expect T2 in queue")
	}
}
