package actor

import (
	"testing"
	"time"
)

func TestMailboxDeliversInSenderOrder(t *testing.T) {
	var got []int
	done := make(chan struct{})
	mb := NewMailbox(8, func(msg int) {
		got = append(got, msg)
		if len(got) == 5 {
			close(done)
		}
	})

	for i := 0; i < 5; i++ {
		mb.Send(i)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not process all messages in time")
	}
	mb.Close()

	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d (FIFO order violated)", i, v, i)
		}
	}
}

func TestMailboxCloseDrainsPending(t *testing.T) {
	count := 0
	mb := NewMailbox(4, func(msg int) { count += msg })
	mb.Send(1)
	mb.Send(2)
	mb.Send(3)
	mb.Close()

	if count != 6 {
		t.Fatalf("count = %d, want 6 (Close must drain pending sends)", count)
	}
}

func TestMailboxTrySendOverflow(t *testing.T) {
	block := make(chan struct{})
	mb := NewMailbox(1, func(msg int) { <-block })

	if !mb.TrySend(1) {
		t.Fatal("first TrySend should succeed (handler busy processing it)")
	}
	// Give the handler goroutine a chance to pick up msg 1.
	time.Sleep(20 * time.Millisecond)
	if !mb.TrySend(2) {
		t.Fatal("second TrySend should fill the capacity-1 buffer")
	}
	if mb.TrySend(3) {
		t.Fatal("third TrySend should fail: mailbox full and handler blocked")
	}
	close(block)
	mb.Close()
}

func TestWakeupTimer(t *testing.T) {
	type msg struct{ w Wakeup }
	fired := make(chan Wakeup, 1)
	mb := NewMailbox(1, func(m msg) { fired <- m.w })

	AfterFuncReason(mb, 10*time.Millisecond, "timeout", func(w Wakeup) msg { return msg{w} })

	select {
	case w := <-fired:
		if w.Reason != "timeout" {
			t.Fatalf("Reason = %q, want %q", w.Reason, "timeout")
		}
	case <-time.After(time.Second):
		t.Fatal("wakeup never fired")
	}
	mb.Close()
}
