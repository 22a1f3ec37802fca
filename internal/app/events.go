package app

import (
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

// Event is everything the loop reacts to. The set is closed: only the types
// below implement it.
type Event interface{ event() }

type (
	Connected      struct{}
	ConnectionLost struct{ Err error }
	StateChanged   struct{ State entities.ConnState }
	Subscribed     struct {
		Topics []entities.Topic
		Err    error
	}
	MessageReceived struct{ Message messages.InboundEvent }

	ThresholdSubmitted struct{ Value string }
	ModeChanged        struct{ Value string }

	VoiceToggled struct{}
	VoiceResult  struct {
		Session    string
		Transcript string
		RequestID  string
	}
	VoiceError struct {
		Session string
		Reason  string
	}
	VoiceEnded struct{ Session string }
)

func (Connected) event()          {}
func (ConnectionLost) event()     {}
func (StateChanged) event()       {}
func (Subscribed) event()         {}
func (MessageReceived) event()    {}
func (ThresholdSubmitted) event() {}
func (ModeChanged) event()        {}
func (VoiceToggled) event()       {}
func (VoiceResult) event()        {}
func (VoiceError) event()         {}
func (VoiceEnded) event()         {}
