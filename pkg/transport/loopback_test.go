package transport

import (
	"testing"
	"time"
)

func TestLoopback_SendDeliversToPeer(t *testing.T) {
	host, frame := NewPair("https://host.example", "https://frame.example")
	defer host.Close()
	defer frame.Close()

	got := make(chan Message, 1)
	host.SetListener(func(m Message) { got <- m })

	if err := frame.Send("payload"); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case m := <-got:
		if m.Origin != "https://frame.example" {
			t.Errorf("origin = %q", m.Origin)
		}
		if m.Source != frame {
			t.Errorf("source = %v, want the sending endpoint", m.Source)
		}
		if m.Data != "payload" {
			t.Errorf("data = %v", m.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestLoopback_OrderPreserved(t *testing.T) {
	host, frame := NewPair("h", "f")
	defer host.Close()
	defer frame.Close()

	const n = 20
	got := make(chan string, n)
	host.SetListener(func(m Message) { got <- m.Data.(string) })

	for i := 0; i < n; i++ {
		if err := frame.Send(string(rune('a' + i))); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		select {
		case s := <-got:
			if want := string(rune('a' + i)); s != want {
				t.Fatalf("message %d = %q, want %q", i, s, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %d never delivered", i)
		}
	}
}

func TestLoopback_DeliverInjectsArbitrarySender(t *testing.T) {
	host, frame := NewPair("h", "f")
	defer host.Close()
	defer frame.Close()

	got := make(chan Message, 1)
	frame.SetListener(func(m Message) { got <- m })

	forged := Message{Origin: "https://evil.example", Source: "stranger", Data: "x"}
	if err := frame.Deliver(forged); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	select {
	case m := <-got:
		if m != forged {
			t.Errorf("delivered %+v, want %+v", m, forged)
		}
	case <-time.After(time.Second):
		t.Fatal("injected message never delivered")
	}
}

func TestLoopback_PeerInfo(t *testing.T) {
	host, frame := NewPair("h", "f")
	defer host.Close()
	defer frame.Close()

	if frame.PeerOrigin() != "h" {
		t.Errorf("frame.PeerOrigin() = %q", frame.PeerOrigin())
	}
	if frame.PeerSource() != host {
		t.Error("frame.PeerSource() is not the host endpoint")
	}
}

func TestLoopback_ClosedEndpointRejectsDelivery(t *testing.T) {
	host, frame := NewPair("h", "f")
	defer frame.Close()

	host.Close()
	host.Close() // idempotent

	if err := host.Deliver(Message{Data: "x"}); err != ErrClosed {
		t.Errorf("Deliver after close = %v, want ErrClosed", err)
	}
}
