package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldRole     = "role"
	FieldTenantID = "tenant_id"

	// Service
	FieldService    = "service"
	FieldInstanceID = "instance_id"
	FieldComponent  = "component"

	// Chat routing
	FieldConnectionID = "connection_id"
	FieldGroupID      = "group_id"
	FieldEventName    = "event"
	FieldMessageID    = "message_id"
	FieldMessageType  = "message_type"
	FieldRoutingKey   = "routing_key"
	FieldEventID      = "event_id"
	FieldFaultKind    = "fault_kind"

	// Presence
	FieldOfficerID  = "officer_id"
	FieldMerchantID = "merchant_id"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
