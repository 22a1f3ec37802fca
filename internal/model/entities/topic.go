package entities

// Topic names a broker channel. Topics and payloads are UTF-8 text.
type Topic string

const (
	TopicSoilMoisture   Topic = "smart_irrigation/soil_moisture"
	TopicLightIntensity Topic = "smart_irrigation/light_intensity"
	TopicPumpState      Topic = "smart_irrigation/pump_state"
	TopicThreshold      Topic = "smart_irrigation/threshold"
	TopicIrrigationMode Topic = "smart_irrigation/irrigation_mode"
)

// InboundTopics returns the topics the dashboard subscribes to, in display order.
func InboundTopics() []Topic {
	return []Topic{TopicSoilMoisture, TopicLightIntensity, TopicPumpState}
}

// OutboundTopics returns the topics the dashboard publishes on.
func OutboundTopics() []Topic {
	return []Topic{TopicThreshold, TopicIrrigationMode}
}

func (t Topic) String() string { return string(t) }
