package messages

// UIEventKind tags a UIEvent.
type UIEventKind string

const (
	UIDisplay          UIEventKind = "display"
	UIAlert            UIEventKind = "alert"
	UIVoiceStatus      UIEventKind = "voice_status"
	UIThresholdInput   UIEventKind = "threshold_input"
	UIModeSelect       UIEventKind = "mode_select"
	UIConnection       UIEventKind = "connection"
	UIRecognitionStart UIEventKind = "recognition_start"
	UIRecognitionStop  UIEventKind = "recognition_stop"
)

// RecognitionOptions configures one browser speech session.
type RecognitionOptions struct {
	Lang            string `json:"lang"`
	Continuous      bool   `json:"continuous"`
	InterimResults  bool   `json:"interim_results"`
	MaxAlternatives int    `json:"max_alternatives"`
}

// UIEvent is an outbound intent towards the operator surface.
type UIEvent struct {
	Kind        UIEventKind         `json:"kind"`
	Field       string              `json:"field,omitempty"`
	Text        string              `json:"text,omitempty"`
	Session     string              `json:"session,omitempty"`
	Recognition *RecognitionOptions `json:"recognition,omitempty"`
}

// Sink receives UI intents.
type Sink interface {
	Emit(UIEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(UIEvent)

func (f SinkFunc) Emit(e UIEvent) { f(e) }

// MultiSink fans one event out to several sinks, in order.
type MultiSink []Sink

func (m MultiSink) Emit(e UIEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}
