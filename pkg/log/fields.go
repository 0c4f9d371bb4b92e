package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Service
	FieldService    = "service"
	FieldComponent  = "component"
	FieldInstanceID = "instance_id"

	// Room
	FieldRoomID       = "room_id"
	FieldClientID     = "client_id"
	FieldConnectionID = "connection_id"
	FieldMsgType      = "msg_type"

	// Engine
	FieldMode      = "mode"
	FieldReaction  = "reaction"
	FieldParticles = "particles"
)
