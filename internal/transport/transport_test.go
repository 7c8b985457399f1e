package transport

import (
	"sync"
	"testing"
)

func TestQueuePollEmpty(t *testing.T) {
	q := NewQueue("test", 2)
	if _, ok := q.Poll(); ok {
		t.Error("empty queue should not yield a record")
	}
}

func TestQueueOrderAndCopy(t *testing.T) {
	q := NewQueue("test", 4)
	buf := []byte("first")
	q.Push(buf)
	copy(buf, "XXXXX")
	q.Push([]byte("second"))

	got, _ := q.Poll()
	if string(got) != "first" {
		t.Errorf("got %q, want first (queue must copy)", got)
	}
	got, _ = q.Poll()
	if string(got) != "second" {
		t.Errorf("got %q, want second", got)
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue("test", 2)
	q.Push([]byte("a"))
	q.Push([]byte("b"))
	if q.Push([]byte("c")) {
		t.Error("push into a full queue should fail")
	}
	if q.Dropped() != 1 {
		t.Errorf("dropped: got %d, want 1", q.Dropped())
	}

	got, _ := q.Poll()
	if string(got) != "a" {
		t.Errorf("oldest record should survive, got %q", got)
	}
}

func TestQueueDefaultSize(t *testing.T) {
	q := NewQueue("test", 0)
	for i := 0; i < DefaultQueueSize; i++ {
		if !q.Push([]byte("x")) {
			t.Fatalf("push %d failed", i)
		}
	}
}

func TestQueueConcurrentPush(t *testing.T) {
	q := NewQueue("test", 100)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				q.Push([]byte("x"))
			}
		}()
	}
	wg.Wait()

	n := 0
	for {
		if _, ok := q.Poll(); !ok {
			break
		}
		n++
	}
	if n != 100 {
		t.Errorf("got %d records, want 100", n)
	}
}

func TestMultiRotates(t *testing.T) {
	a := NewFake("a1", "a2", "a3")
	a.SourceName = "a"
	b := NewFake("b1")
	b.SourceName = "b"
	m := NewMulti(a, nil, b)

	if m.Len() != 2 {
		t.Fatalf("nil source should be skipped, len=%d", m.Len())
	}

	var got []string
	for {
		rec, ok := m.Poll()
		if !ok {
			break
		}
		got = append(got, rec.Source.Name()+":"+string(rec.Line))
	}

	want := []string{"a:a1", "b:b1", "a:a2", "a:a3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMultiEmpty(t *testing.T) {
	if _, ok := NewMulti().Poll(); ok {
		t.Error("empty Multi should not yield a record")
	}
}

func TestFakeReplies(t *testing.T) {
	f := NewFake()
	if f.Name() != "fake" || f.LastReply() != "" {
		t.Errorf("unexpected defaults: %q %q", f.Name(), f.LastReply())
	}
	f.Reply("ok")
	f.Reply("error: x")
	if f.LastReply() != "error: x" || len(f.Replies) != 2 {
		t.Errorf("replies: %v", f.Replies)
	}
}
