package entities

// ConnState is the broker link state.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
)

// SessionState is the state of the voice session.
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionListening SessionState = "listening"
	SessionEnded     SessionState = "ended"
)

// IrrigationMode is the daytime irrigation switch value.
type IrrigationMode string

const (
	ModeOn  IrrigationMode = "ON"
	ModeOff IrrigationMode = "OFF"
)
