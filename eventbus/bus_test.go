package eventbus

import (
	"testing"
)

func TestEmitOrder(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	var got []int
	bus.On("topic", func(any) { got = append(got, 1) })
	bus.On("topic", func(any) { got = append(got, 2) })
	bus.On("topic", func(any) { got = append(got, 3) })

	bus.Emit("topic", nil)

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("handlers ran out of registration order: %v", got)
	}
}

func TestEmitPayload(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	var got any
	bus.On("topic", func(p any) { got = p })

	bus.Emit("topic", "hello")

	if got != "hello" {
		t.Fatalf("payload = %v, want hello", got)
	}
}

func TestEmitUnknownTopic(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	called := false
	bus.On("topic", func(any) { called = true })

	bus.Emit("other", nil)

	if called {
		t.Fatal("handler ran for a topic it never subscribed to")
	}
}

func TestPanicIsolated(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	var after bool
	bus.On("topic", func(any) { panic("boom") })
	bus.On("topic", func(any) { after = true })

	bus.Emit("topic", nil)

	if !after {
		t.Fatal("handler after the panicking one did not run")
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	var first, second int
	off := bus.On("topic", func(any) { first++ })
	bus.On("topic", func(any) { second++ })

	bus.Emit("topic", nil)
	off()
	bus.Emit("topic", nil)
	off() // second call is a no-op
	bus.Emit("topic", nil)

	if first != 1 {
		t.Fatalf("unsubscribed handler ran %d times, want 1", first)
	}
	if second != 3 {
		t.Fatalf("remaining handler ran %d times, want 3", second)
	}
}

func TestUnsubscribeRemovesOnlyOwnRegistration(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	var a, b int
	offA := bus.On("topic", func(any) { a++ })
	bus.On("topic", func(any) { b++ })

	offA()
	bus.Emit("topic", nil)

	if a != 0 || b != 1 {
		t.Fatalf("a = %d, b = %d, want 0 and 1", a, b)
	}
}
