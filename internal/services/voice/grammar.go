package voice

import (
	"regexp"
	"strings"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

var (
	thresholdPattern = regexp.MustCompile(`set threshold to (\d+)`)
	daytimePattern   = regexp.MustCompile(`set daytime to (on|off)`)
)

// Parse lower-cases transcript and matches both command forms independently.
// Threshold comes first when both match. No match yields nil.
func Parse(transcript string) []messages.OutboundCommand {
	text := strings.ToLower(transcript)
	var out []messages.OutboundCommand
	if m := thresholdPattern.FindStringSubmatch(text); m != nil {
		if cmd, err := messages.NewVoiceThresholdCommand(m[1]); err == nil {
			out = append(out, cmd)
		}
	}
	if m := daytimePattern.FindStringSubmatch(text); m != nil {
		if cmd, err := messages.NewModeCommand(strings.ToUpper(m[1])); err == nil {
			out = append(out, cmd)
		}
	}
	return out
}
