package ws

import (
	"testing"
	"time"
)

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	ch := make(chan Message, 10)
	h.Register("client1", ch)

	h.Broadcast(Message{Type: MessageTypeJobStatus, Data: map[string]interface{}{"job_id": 1}})

	select {
	case msg := <-ch:
		if msg.Type != MessageTypeJobStatus {
			t.Errorf("type = %q", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	ch := make(chan Message, 1)
	h.Register("client1", ch)
	h.Unregister("client1")

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return // closed as expected
			}
		case <-deadline:
			t.Fatal("channel not closed after unregister")
		}
	}
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	// Unbuffered and never read: its pump stalls, the hub must not.
	slow := make(chan Message)
	h.Register("slow", slow)
	fast := make(chan Message, 10)
	h.Register("fast", fast)

	for i := 0; i < 5; i++ {
		h.Broadcast(Message{Type: MessageTypeJobStatus})
	}

	received := 0
	timeout := time.After(time.Second)
	for received < 5 {
		select {
		case <-fast:
			received++
		case <-timeout:
			t.Fatalf("fast client starved behind slow client, got %d", received)
		}
	}
}

// A client that falls behind sees one coalesced progress value per job, not
// a replay of every tick; status messages are never coalesced.
func TestHubCoalescesProgressForSlowClients(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	ch := make(chan Message) // unbuffered: nothing is delivered until read
	h.Register("viewer", ch)

	h.Broadcast(Message{Type: MessageTypeJobStatus, Data: map[string]interface{}{"job_id": 1, "status": "printing"}})
	for i := 1; i <= 10; i++ {
		h.Broadcast(Message{Type: MessageTypeJobProgress, Data: map[string]interface{}{"job_id": 1, "progress": float64(i) / 10}})
	}
	// A different job's progress must not be folded into job 1's.
	h.Broadcast(Message{Type: MessageTypeJobProgress, Data: map[string]interface{}{"job_id": 2, "progress": 0.5}})

	first := <-ch
	if first.Type != MessageTypeJobStatus {
		t.Fatalf("first message type = %q, want job_status", first.Type)
	}
	second := <-ch
	if second.Type != MessageTypeJobProgress || second.Data["job_id"] != 1 {
		t.Fatalf("second message = %+v, want job 1 progress", second)
	}
	if got := second.Data["progress"]; got != 1.0 {
		t.Errorf("progress = %v, want the latest tick 1.0", got)
	}
	third := <-ch
	if third.Type != MessageTypeJobProgress || third.Data["job_id"] != 2 {
		t.Fatalf("third message = %+v, want job 2 progress", third)
	}

	select {
	case m := <-ch:
		t.Errorf("unexpected extra message %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubRegisterAfterShutdown(t *testing.T) {
	h := NewHub()
	h.Shutdown()

	ch := make(chan Message)
	h.Register("late", ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("late registration must not receive messages")
		}
	case <-time.After(time.Second):
		t.Fatal("late registration channel must be closed immediately")
	}
}

func TestMessageMarshalStampsTimestamp(t *testing.T) {
	m := Message{Type: MessageTypeLogEntry}
	data, err := m.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if m.Timestamp.IsZero() {
		t.Error("Marshal must stamp a zero timestamp")
	}
	if len(data) == 0 {
		t.Error("empty payload")
	}
}
