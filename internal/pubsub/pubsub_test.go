package pubsub

import "testing"

type fakeSink struct {
	accept bool
	got    [][]byte
}

func (f *fakeSink) TrySend(frame []byte) bool {
	if !f.accept {
		return false
	}
	f.got = append(f.got, frame)
	return true
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	b := New()
	a := &fakeSink{accept: true}
	c := &fakeSink{accept: true}

	if n := b.Subscribe("foo", Subscriber{Addr: "A", Sink: a}); n != 1 {
		t.Fatalf("subscribe count = %d, want 1", n)
	}
	if n := b.Subscribe("foo", Subscriber{Addr: "B", Sink: c}); n != 1 {
		t.Fatalf("subscribe count for B = %d, want 1", n)
	}

	delivered := b.Publish("foo", []byte("msg"))
	if delivered != 2 {
		t.Fatalf("publish delivered = %d, want 2", delivered)
	}
	if len(a.got) != 1 || string(a.got[0]) != "msg" {
		t.Fatalf("subscriber A got %v", a.got)
	}

	remaining := b.Unsubscribe("A", "foo")
	if remaining != 0 {
		t.Fatalf("A remaining subscriptions = %d, want 0", remaining)
	}
	delivered = b.Publish("foo", []byte("msg2"))
	if delivered != 1 {
		t.Fatalf("after unsubscribe, delivered = %d, want 1", delivered)
	}
}

func TestPublishEvictsSlowSubscriber(t *testing.T) {
	b := New()
	slow := &fakeSink{accept: false}
	b.Subscribe("c", Subscriber{Addr: "slow", Sink: slow})

	delivered := b.Publish("c", []byte("x"))
	if delivered != 0 {
		t.Fatalf("delivered = %d, want 0", delivered)
	}
	if b.SubscriptionCount("slow") != 0 {
		t.Fatal("slow subscriber should have been evicted")
	}
}

func TestUnsubscribeAll(t *testing.T) {
	b := New()
	sink := &fakeSink{accept: true}
	b.Subscribe("a", Subscriber{Addr: "X", Sink: sink})
	b.Subscribe("b", Subscriber{Addr: "X", Sink: sink})
	if n := b.SubscriptionCount("X"); n != 2 {
		t.Fatalf("subscription count = %d, want 2", n)
	}
	left := b.UnsubscribeAll("X")
	if len(left) != 2 {
		t.Fatalf("unsubscribed from %d channels, want 2", len(left))
	}
	if b.SubscriptionCount("X") != 0 {
		t.Fatal("expected zero subscriptions after UnsubscribeAll")
	}
}

func TestChannelsAndNumSub(t *testing.T) {
	b := New()
	sink := &fakeSink{accept: true}
	b.Subscribe("news.sports", Subscriber{Addr: "A", Sink: sink})
	b.Subscribe("news.weather", Subscriber{Addr: "A", Sink: sink})
	b.Subscribe("news.weather", Subscriber{Addr: "B", Sink: sink})

	all := b.Channels("")
	if len(all) != 2 {
		t.Fatalf("Channels() = %v, want 2 entries", all)
	}
	filtered := b.Channels("news.s*")
	if len(filtered) != 1 || filtered[0] != "news.sports" {
		t.Fatalf("Channels(news.s*) = %v", filtered)
	}

	counts := b.NumSub([]string{"news.sports", "news.weather", "nothing"})
	if counts[0] != 1 || counts[1] != 2 || counts[2] != 0 {
		t.Fatalf("NumSub = %v", counts)
	}
}
