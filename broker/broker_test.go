package broker

import (
	"context"
	"testing"
	"time"

	"github.com/mbocsi/lightwaverf/proto"
)

func TestBroker_PublishToAllSubscribers(t *testing.T) {
	b := NewBroker()
	_, ch1 := b.Subscribe(1)
	_, ch2 := b.Subscribe(1)

	b.Publish(proto.Event{Kind: proto.EventDeviceOn, Room: 1, Device: 2})

	for i, ch := range []<-chan proto.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != proto.EventDeviceOn || ev.Room != 1 || ev.Device != 2 {
				t.Errorf("Subscriber %d: unexpected event %+v", i, ev)
			}
		default:
			t.Errorf("Subscriber %d: expected event", i)
		}
	}
}

func TestBroker_KindFilter(t *testing.T) {
	b := NewBroker()
	_, ch := b.Subscribe(2, proto.EventDeviceDimmed)

	b.Publish(proto.Event{Kind: proto.EventDeviceOn})
	b.Publish(proto.Event{Kind: proto.EventDeviceDimmed, Percentage: 50})

	select {
	case ev := <-ch:
		if ev.Kind != proto.EventDeviceDimmed || ev.Percentage != 50 {
			t.Errorf("Expected dimmed event, got %+v", ev)
		}
	default:
		t.Fatal("Expected dimmed event")
	}
	select {
	case ev := <-ch:
		t.Errorf("Expected filtered events to be skipped, got %+v", ev)
	default:
	}
}

func TestBroker_FullSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	_, ch := b.Subscribe(1)

	done := make(chan struct{})
	go func() {
		b.Publish(proto.Event{Kind: proto.EventDeviceOn})
		b.Publish(proto.Event{Kind: proto.EventDeviceOff})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if ev := <-ch; ev.Kind != proto.EventDeviceOn {
		t.Errorf("Expected first event to be kept, got %+v", ev)
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe(1)
	b.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed")
	}
	if b.Subscribers() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", b.Subscribers())
	}

	// Unknown ids are ignored.
	b.Unsubscribe(id)
	b.Publish(proto.Event{Kind: proto.EventDeviceOn})
}

func TestBroker_RunForwardsUntilSourceCloses(t *testing.T) {
	b := NewBroker()
	_, ch := b.Subscribe(4)

	src := make(chan proto.Event, 2)
	src <- proto.Event{Kind: proto.EventRegistered}
	close(src)

	done := make(chan struct{})
	go func() {
		b.Run(context.Background(), src)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after source closed")
	}
	if ev, ok := <-ch; !ok || ev.Kind != proto.EventRegistered {
		t.Errorf("Expected registered event, got %+v (ok=%v)", ev, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("Expected subscription to be closed after Run")
	}
}
