package entities

// DisplayField identifies one text display of the dashboard.
type DisplayField string

const (
	DisplaySoilMoisture   DisplayField = "soil_moisture"
	DisplayLightIntensity DisplayField = "light_intensity"
	DisplayPumpState      DisplayField = "pump_state"
)

// DisplayFor maps an inbound topic to the display it feeds.
// The second return is false for every topic outside the inbound set.
func DisplayFor(t Topic) (DisplayField, bool) {
	switch t {
	case TopicSoilMoisture:
		return DisplaySoilMoisture, true
	case TopicLightIntensity:
		return DisplayLightIntensity, true
	case TopicPumpState:
		return DisplayPumpState, true
	default:
		return "", false
	}
}

// Displays holds the last text received for each display. No history is kept.
type Displays map[DisplayField]string
