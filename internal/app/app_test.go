package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

type pub struct {
	topic   entities.Topic
	payload string
}

type fakeBroker struct {
	subscribes [][]entities.Topic
	published  []pub
}

func (f *fakeBroker) Subscribe(topics []entities.Topic) error {
	f.subscribes = append(f.subscribes, topics)
	return nil
}

func (f *fakeBroker) Publish(topic entities.Topic, payload string) error {
	f.published = append(f.published, pub{topic, payload})
	return nil
}

type fakeRecognizer struct{ starts []string }

func (f *fakeRecognizer) Start(session string, _ messages.RecognitionOptions) error {
	f.starts = append(f.starts, session)
	return nil
}

func (f *fakeRecognizer) Stop(string) error { return nil }

type sink struct {
	mu     sync.Mutex
	events []messages.UIEvent
	ch     chan messages.UIEvent
}

func (s *sink) Emit(e messages.UIEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	if s.ch != nil {
		s.ch <- e
	}
}

func (s *sink) kind(k messages.UIEventKind) []messages.UIEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []messages.UIEvent
	for _, e := range s.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

type memRecorder struct{ got []messages.InboundEvent }

func (m *memRecorder) Record(ev messages.InboundEvent) { m.got = append(m.got, ev) }

type fixture struct {
	app    *App
	broker *fakeBroker
	rec    *fakeRecognizer
	sink   *sink
	hist   *memRecorder
}

func newFixture() *fixture {
	f := &fixture{broker: &fakeBroker{}, rec: &fakeRecognizer{}, sink: &sink{}, hist: &memRecorder{}}
	f.app = New(f.broker, f.rec, f.sink, Options{Recorder: f.hist}, zerolog.Nop())
	return f
}

// step runs the queued events on the calling goroutine.
func (f *fixture) step(t *testing.T) {
	t.Helper()
	for {
		select {
		case ev := <-f.app.events:
			f.app.handle(ev)
		default:
			return
		}
	}
}

func TestConnectionDropAlertsOnceAndResubscribes(t *testing.T) {
	f := newFixture()
	h := f.app.BrokerHandlers()

	h.OnConnect()
	h.OnLost(errors.New("EOF"))
	h.OnState(entities.ConnReconnecting)
	h.OnConnect()
	f.step(t)

	if alerts := f.sink.kind(messages.UIAlert); len(alerts) != 1 {
		t.Fatalf("alerts = %+v, want exactly one", alerts)
	}
	if len(f.broker.subscribes) != 2 {
		t.Fatalf("subscribe calls = %d, want 2", len(f.broker.subscribes))
	}
	for _, topics := range f.broker.subscribes {
		if len(topics) != len(entities.InboundTopics()) {
			t.Errorf("subscribe batch = %v", topics)
		}
	}
	if got := f.app.router.State(); got != entities.ConnConnected {
		t.Errorf("state = %s, want connected", got)
	}
}

func TestInboundMessageIsDisplayedAndRecorded(t *testing.T) {
	f := newFixture()
	h := f.app.BrokerHandlers()
	h.OnMessage(string(entities.TopicSoilMoisture), []byte("41"))
	h.OnMessage("smart_irrigation/unknown", []byte("x"))
	f.step(t)

	d := f.sink.kind(messages.UIDisplay)
	if len(d) != 1 || d[0].Field != string(entities.DisplaySoilMoisture) || d[0].Text != "41" {
		t.Fatalf("display events = %+v", d)
	}
	if len(f.hist.got) != 2 {
		t.Errorf("recorded = %d, want 2", len(f.hist.got))
	}
}

func TestVoiceScenarios(t *testing.T) {
	for _, tt := range []struct {
		transcript string
		want       []pub
		field      messages.UIEventKind
		text       string
	}{
		{"please set threshold to 45 now", []pub{{entities.TopicThreshold, "45"}}, messages.UIThresholdInput, "45"},
		{"set daytime to on please", []pub{{entities.TopicIrrigationMode, "ON"}}, messages.UIModeSelect, "ON"},
		{"turn on the lights", nil, "", ""},
	} {
		t.Run(tt.transcript, func(t *testing.T) {
			f := newFixture()
			f.app.Post(VoiceToggled{})
			f.step(t)
			if len(f.rec.starts) != 1 {
				t.Fatalf("recognizer starts = %d", len(f.rec.starts))
			}
			session := f.rec.starts[0]
			f.app.Post(VoiceResult{Session: session, Transcript: tt.transcript, RequestID: "r1"})
			f.app.Post(VoiceEnded{Session: session})
			f.step(t)

			if len(f.broker.published) != len(tt.want) {
				t.Fatalf("published = %+v, want %+v", f.broker.published, tt.want)
			}
			for i := range tt.want {
				if f.broker.published[i] != tt.want[i] {
					t.Errorf("published[%d] = %+v, want %+v", i, f.broker.published[i], tt.want[i])
				}
			}
			if tt.field == "" {
				if n := len(f.sink.kind(messages.UIThresholdInput)) + len(f.sink.kind(messages.UIModeSelect)); n != 0 {
					t.Errorf("unexpected field updates: %d", n)
				}
				if a := f.sink.kind(messages.UIAlert); len(a) != 0 {
					t.Errorf("unexpected alerts: %+v", a)
				}
			} else if ev := f.sink.kind(tt.field); len(ev) != 1 || ev[0].Text != tt.text {
				t.Errorf("%s events = %+v", tt.field, ev)
			}
			if f.app.voice.State() != entities.SessionIdle {
				t.Errorf("session state = %s, want idle", f.app.voice.State())
			}
		})
	}
}

func TestManualSettings(t *testing.T) {
	f := newFixture()
	f.app.Post(ThresholdSubmitted{Value: "150"})
	f.app.Post(ThresholdSubmitted{Value: " 30 "})
	f.app.Post(ModeChanged{Value: "OFF"})
	f.step(t)

	want := []pub{{entities.TopicThreshold, "30"}, {entities.TopicIrrigationMode, "OFF"}}
	if len(f.broker.published) != len(want) {
		t.Fatalf("published = %+v", f.broker.published)
	}
	for i := range want {
		if f.broker.published[i] != want[i] {
			t.Errorf("published[%d] = %+v, want %+v", i, f.broker.published[i], want[i])
		}
	}
}

func TestRunProcessesPostedEvents(t *testing.T) {
	f := newFixture()
	f.sink.ch = make(chan messages.UIEvent, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.app.Run(ctx) }()

	if !f.app.Post(ThresholdSubmitted{Value: "abc"}) {
		t.Fatal("Post returned false on a running loop")
	}
	select {
	case ev := <-f.sink.ch:
		if ev.Kind != messages.UIAlert {
			t.Errorf("event = %+v, want alert", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not processed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if f.app.Post(VoiceToggled{}) {
		t.Error("Post after stop returned true")
	}
}
