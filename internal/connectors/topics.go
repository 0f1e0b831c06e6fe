package connectors

const (
	TopicConnStatus = "conn.status"
	TopicStatus     = "status"
	TopicTelemetry  = "telemetry"
	TopicRawLineIn  = "raw.line.in"
	TopicRawLineOut = "raw.line.out"
)
