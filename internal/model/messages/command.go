package messages

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
)

var (
	ErrInvalidThreshold = errors.New("threshold must be a number between 0 and 100")
	ErrInvalidDigits    = errors.New("threshold must be one or more digits")
	ErrInvalidMode      = errors.New("irrigation mode must be ON or OFF")
)

// OutboundCommand is a validated publish request. Build it with one of the
// New*Command constructors; the zero value is not publishable.
type OutboundCommand struct {
	Topic   entities.Topic `json:"topic"`
	Payload string         `json:"payload"`
}

// Valid reports whether the command was built by a constructor.
func (c OutboundCommand) Valid() bool { return c.Topic != "" && c.Payload != "" }

// NewThresholdCommand validates manual operator input. The input is trimmed
// and must parse as a finite number in [0, 100]; the payload is the trimmed text.
func NewThresholdCommand(raw string) (OutboundCommand, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return OutboundCommand{}, ErrInvalidThreshold
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || n < 0 || n > 100 {
		return OutboundCommand{}, fmt.Errorf("%w: %q", ErrInvalidThreshold, v)
	}
	return OutboundCommand{Topic: entities.TopicThreshold, Payload: v}, nil
}

// NewVoiceThresholdCommand builds the threshold command captured from speech.
// Only the digit form is checked, the range is not.
func NewVoiceThresholdCommand(digits string) (OutboundCommand, error) {
	if digits == "" {
		return OutboundCommand{}, ErrInvalidDigits
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return OutboundCommand{}, fmt.Errorf("%w: %q", ErrInvalidDigits, digits)
		}
	}
	return OutboundCommand{Topic: entities.TopicThreshold, Payload: digits}, nil
}

// NewModeCommand accepts exactly ON or OFF.
func NewModeCommand(raw string) (OutboundCommand, error) {
	switch m := entities.IrrigationMode(strings.TrimSpace(raw)); m {
	case entities.ModeOn, entities.ModeOff:
		return OutboundCommand{Topic: entities.TopicIrrigationMode, Payload: string(m)}, nil
	default:
		return OutboundCommand{}, fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}
