package queue

import (
	"context"
	"testing"
	"time"

	"classattend/internal/attendance"
)

func TestWindowOpenedRoundTrip(t *testing.T) {
	w := attendance.Window{
		ID:          "s1",
		CourseID:    "CS101",
		SessionDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Start:       attendance.Clock24(9, 0),
		End:         attendance.Clock24(9, 15),
	}
	msg, err := NewWindowOpened(w)
	if err != nil {
		t.Fatalf("NewWindowOpened: %v", err)
	}
	evt, err := DecodeWindowOpened(deserialize(serialize(msg)))
	if err != nil {
		t.Fatalf("DecodeWindowOpened: %v", err)
	}
	want := WindowOpened{CourseID: "CS101", SessionID: "s1", Date: "2024-03-04", End: attendance.Clock24(9, 15)}
	if evt != want {
		t.Fatalf("got %+v, want %+v", evt, want)
	}
	if _, err := DecodeWindowOpened(Message{Type: "other"}); err == nil {
		t.Fatalf("expected error for foreign message type")
	}
}

func TestDeserializeWithoutSeparator(t *testing.T) {
	msg := deserialize("plain")
	if msg.Type != "" || string(msg.Body) != "plain" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestInMemoryDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: TypeWindowOpened, Body: []byte("{}")}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case msg := <-ch:
		if msg.Type != TypeWindowOpened {
			t.Fatalf("unexpected type %q", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel to close")
		}
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop")
	}
}
