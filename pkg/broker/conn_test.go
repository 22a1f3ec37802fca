package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
)

func newTestConn(f *fakeClient, h Handlers) *Conn {
	cfg := Config{ReconnectInterval: 5 * time.Millisecond, BreakerFailures: 2, BreakerOpenFor: time.Minute}
	c := &Conn{cfg: cfg.withDefaults(), h: h, log: zerolog.Nop()}
	return c.attach(f)
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestConfigOptions(t *testing.T) {
	opts := Config{ClientID: "dash-1"}.Options()
	if opts.KeepAlive != 60 {
		t.Errorf("KeepAlive = %d, want 60", opts.KeepAlive)
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if opts.AutoReconnect {
		t.Error("AutoReconnect = true, want false (Conn.Run reconnects)")
	}
	if len(opts.Servers) != 1 || opts.Servers[0].String() != DefaultBrokerURL {
		t.Errorf("Servers = %v, want [%s]", opts.Servers, DefaultBrokerURL)
	}
	if opts.ClientID != "dash-1" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
}

func TestRunReconnectsAfterLoss(t *testing.T) {
	f := &fakeClient{}
	connected := make(chan struct{}, 4)
	lost := make(chan struct{}, 4)
	c := newTestConn(f, Handlers{
		OnConnect: func() { connected <- struct{}{} },
		OnLost:    func(error) { lost <- struct{}{} },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, connected, "first connect")
	if c.State() != entities.ConnConnected {
		t.Fatalf("state = %s, want connected", c.State())
	}

	f.drop()
	c.connectionLost(errors.New("EOF"))
	waitFor(t, lost, "loss notification")
	waitFor(t, connected, "reconnect")

	if n := f.connectCount(); n != 2 {
		t.Errorf("connect attempts = %d, want 2", n)
	}
	if len(lost) != 0 {
		t.Errorf("loss notified %d extra times", len(lost))
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
	if c.State() != entities.ConnDisconnected {
		t.Errorf("state after stop = %s", c.State())
	}
}

func TestRunRetriesUntilBrokerAccepts(t *testing.T) {
	f := &fakeClient{connectErrs: []error{errors.New("refused"), errors.New("refused")}}
	connected := make(chan struct{}, 1)
	c := newTestConn(f, Handlers{OnConnect: func() { connected <- struct{}{} }})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	waitFor(t, connected, "connect")
	if n := f.connectCount(); n != 3 {
		t.Errorf("connect attempts = %d, want 3", n)
	}
}

func TestLossDuringConnectIsNotReportedConnected(t *testing.T) {
	f := &fakeClient{}
	connected := make(chan struct{}, 4)
	c := newTestConn(f, Handlers{OnConnect: func() { connected <- struct{}{} }})
	f.afterConnect = func() {
		f.drop()
		c.connectionLost(errors.New("EOF"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	waitFor(t, connected, "connect")
	time.Sleep(50 * time.Millisecond)
	if n := f.connectCount(); n != 2 {
		t.Errorf("connect attempts = %d, want 2", n)
	}
	if len(connected) != 0 {
		t.Errorf("OnConnect fired %d extra times", len(connected))
	}
	if c.State() != entities.ConnConnected {
		t.Errorf("state = %s, want connected", c.State())
	}
}

func TestLossAfterConnectMarksReconnecting(t *testing.T) {
	f := &fakeClient{}
	states := make(chan entities.ConnState, 8)
	c := newTestConn(f, Handlers{OnState: func(s entities.ConnState) { states <- s }})
	c.cfg.ReconnectInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	if s := <-states; s != entities.ConnConnected {
		t.Fatalf("first state = %s", s)
	}
	// the connected update raced ahead of the loss; Run must still settle
	f.drop()
	c.lost <- errors.New("EOF")
	select {
	case s := <-states:
		if s != entities.ConnReconnecting {
			t.Fatalf("state = %s, want reconnecting", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("state not updated after loss")
	}
}

func TestSubscribeIsBatched(t *testing.T) {
	f := &fakeClient{}
	subscribed := make(chan error, 1)
	received := make(chan string, 1)
	c := newTestConn(f, Handlers{
		OnSubscribed: func(_ []entities.Topic, err error) { subscribed <- err },
		OnMessage:    func(topic string, payload []byte) { received <- topic + "=" + string(payload) },
	})

	if err := c.Subscribe(entities.InboundTopics()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Subscribe while disconnected: err = %v", err)
	}

	c.setState(entities.ConnConnected)
	if err := c.Subscribe(entities.InboundTopics()); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-subscribed:
		if err != nil {
			t.Fatalf("subscribe result: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe result")
	}
	if len(f.subscribed) != 1 || len(f.subscribed[0]) != 3 {
		t.Fatalf("subscribe calls = %v, want one call with 3 topics", f.subscribed)
	}

	f.deliver("smart_irrigation/pump_state", "ON")
	if got := <-received; got != "smart_irrigation/pump_state=ON" {
		t.Errorf("dispatched %q", got)
	}
}

func TestPublish(t *testing.T) {
	f := &fakeClient{connected: true}
	c := newTestConn(f, Handlers{})
	c.setState(entities.ConnConnected)

	if err := c.Publish(entities.TopicThreshold, "45"); err != nil {
		t.Fatal(err)
	}
	want := published{topic: "smart_irrigation/threshold", qos: 0, retained: false, payload: "45"}
	if len(f.published) != 1 || f.published[0] != want {
		t.Errorf("published = %+v, want [%+v]", f.published, want)
	}
}

func TestPublishBreaker(t *testing.T) {
	t.Run("transport failures trip", func(t *testing.T) {
		f := &fakeClient{connected: true, publishErr: errors.New("broken pipe")}
		p := NewPublisher(f, PublisherConfig{Name: "test", Failures: 2, OpenFor: time.Minute}, zerolog.Nop())
		for i := 0; i < 2; i++ {
			if err := p.Publish("t", "x"); err == nil {
				t.Fatal("expected publish error")
			}
		}
		if err := p.Publish("t", "x"); !errors.Is(err, gobreaker.ErrOpenState) {
			t.Errorf("err = %v, want ErrOpenState", err)
		}
		if p.BreakerState() != gobreaker.StateOpen {
			t.Errorf("state = %v", p.BreakerState())
		}
	})
	t.Run("not connected does not trip", func(t *testing.T) {
		f := &fakeClient{}
		p := NewPublisher(f, PublisherConfig{Name: "test", Failures: 2, OpenFor: time.Minute}, zerolog.Nop())
		for i := 0; i < 5; i++ {
			if err := p.Publish("t", "x"); !errors.Is(err, ErrNotConnected) {
				t.Fatalf("err = %v, want ErrNotConnected", err)
			}
		}
		if p.BreakerState() != gobreaker.StateClosed {
			t.Errorf("state = %v, want closed", p.BreakerState())
		}
	})
}
