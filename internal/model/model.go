package model

import (
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

// Aliases exposing the common types to the services.

type (
	Topic          = entities.Topic
	DisplayField   = entities.DisplayField
	Displays       = entities.Displays
	ConnState      = entities.ConnState
	SessionState   = entities.SessionState
	IrrigationMode = entities.IrrigationMode

	InboundEvent    = messages.InboundEvent
	OutboundCommand = messages.OutboundCommand
	UIEvent         = messages.UIEvent
	UIEventKind     = messages.UIEventKind
	Sink            = messages.Sink
)

const (
	ModeOn  = entities.ModeOn
	ModeOff = entities.ModeOff
)

var (
	ErrInvalidThreshold = messages.ErrInvalidThreshold
	ErrInvalidDigits    = messages.ErrInvalidDigits
	ErrInvalidMode      = messages.ErrInvalidMode
)
