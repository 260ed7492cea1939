package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan DeviceAttachedEvent, 1)

	unsub := bus.Subscribe(func(e DeviceAttachedEvent) {
		received <- e
	})
	defer unsub()

	ev := DeviceAttachedEvent{
		DeviceName: "/dev/bus/usb/001/004",
		DevicePath: "/dev/video0",
		Label:      "HD USB Camera",
	}
	bus.Publish(ev)

	select {
	case got := <-received:
		if got.DeviceName != ev.DeviceName {
			t.Errorf("DeviceName = %s, want %s", got.DeviceName, ev.DeviceName)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan SessionStateChangedEvent, 1)
	received2 := make(chan SessionStateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e SessionStateChangedEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e SessionStateChangedEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(SessionStateChangedEvent{From: "open", To: "streaming", Port: 10558})

	for _, ch := range []chan SessionStateChangedEvent{received1, received2} {
		select {
		case e := <-ch:
			if !e.IsStreaming() {
				t.Errorf("IsStreaming() = false for %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber missed event")
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan DeviceDetachedEvent, 1)

	unsub := bus.Subscribe(func(e DeviceDetachedEvent) { received <- e })

	bus.Publish(DeviceDetachedEvent{DevicePath: "/dev/video0"})
	<-received

	unsub()

	bus.Publish(DeviceDetachedEvent{DevicePath: "/dev/video1"})
	select {
	case <-received:
		t.Fatal("received event after unsubscribe")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()
	attached := make(chan DeviceAttachedEvent, 1)
	detached := make(chan DeviceDetachedEvent, 1)

	defer bus.Subscribe(func(e DeviceAttachedEvent) { attached <- e })()
	defer bus.Subscribe(func(e DeviceDetachedEvent) { detached <- e })()

	bus.Publish(DeviceDetachedEvent{DeviceName: "/dev/bus/usb/001/004"})

	select {
	case <-detached:
	case <-time.After(time.Second):
		t.Fatal("detached subscriber missed event")
	}
	select {
	case e := <-attached:
		t.Fatalf("attached subscriber received %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_UnknownHandlerIsNoop(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_ThreadSafety(t *testing.T) {
	bus := New()
	var mu sync.Mutex
	count := 0
	done := make(chan struct{})

	unsub := bus.Subscribe(func(EncoderMetricsEvent) {
		mu.Lock()
		count++
		if count == 100 {
			close(done)
		}
		mu.Unlock()
	})
	defer unsub()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			for range 10 {
				bus.Publish(EncoderMetricsEvent{Port: port, FPS: "25"})
			}
		}(10554 + i)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		mu.Lock()
		defer mu.Unlock()
		t.Fatalf("received %d events, want 100", count)
	}
}

func TestSessionStateChangedEventJSON(t *testing.T) {
	data, err := json.Marshal(SessionStateChangedEvent{
		DeviceName: "/dev/bus/usb/001/004",
		From:       "attached",
		To:         "error",
		Code:       "DEVICE_BUSY",
	})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["code"] != "DEVICE_BUSY" {
		t.Errorf("code = %v", decoded["code"])
	}
	if _, ok := decoded["port"]; ok {
		t.Error("zero port should be omitted")
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[StreamStatusEvent](bus, ch)
	defer unsub()

	bus.Publish(StreamStatusEvent{Port: 10558, Status: "publishing"})

	select {
	case received := <-ch:
		status, ok := received.(StreamStatusEvent)
		if !ok {
			t.Fatalf("got %T, want StreamStatusEvent", received)
		}
		if status.Port != 10558 {
			t.Errorf("Port = %d, want 10558", status.Port)
		}
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any)

	unsub := SubscribeToChannel[StreamStatusEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(StreamStatusEvent{Status: "stopped"})
		done <- true
	}()
	<-done
}
