package domain

// Routing keys used when publishing envelopes to the broker.
const (
	RoutingKeyMerchantFirstChat    = "merchant_sent_first_chat"
	RoutingKeyMerchantRegularChat  = "merchant_sent_regular_chat"
	RoutingKeyMerchantFarewellChat = "merchant_sent_farewell_chat"
	RoutingKeyOfficerFirstChat     = "compliance_officer_sent_first_chat"
	RoutingKeyOfficerRegularChat   = "compliance_officer_sent_regular_chat"
	RoutingKeyOfficerFarewellChat  = "compliance_officer_sent_farewell_chat"
)

// Client-facing event names. Clients bind handlers to these exact strings.
const (
	EventReceiveMerchantRegularChat  = "ReceiveMerchantRegularChat"
	EventEchoMerchantRegularChat     = "EchoMerchantRegularChat"
	EventReceiveMerchantFarewellChat = "ReceiveMerchantFarewellChat"
	EventEchoMerchantFarewellChat    = "EchoMerchantFarewellChat"

	EventReceiveOfficerFirstChat    = "ReceiveComplianceOfficerFirstChat"
	EventEchoOfficerFirstChat       = "EchoComplianceOfficerFirstChat"
	EventReceiveOfficerRegularChat  = "ReceiveComplianceOfficerRegularChat"
	EventEchoOfficerRegularChat     = "EchoComplianceOfficerRegularChat"
	EventReceiveOfficerFarewellChat = "ReceiveComplianceOfficerFarewellChat"
	EventEchoOfficerFarewellChat    = "EchoComplianceOfficerFarewellChat"

	EventHeartbeatOfficer         = "ReceiveHeartbeatFromServerComplianceOfficer"
	EventHeartbeatMerchant        = "ReceiveHeartbeatFromServerMerchant"
	EventMerchantOffline          = "MerchantOfflineNotification"
	EventComplianceOfficerOffline = "ComplianceOfficerOfflineNotification"
)

// RoutingDecision is the classification of one message type.
type RoutingDecision struct {
	RoutingKey     string
	Live           bool
	TargetGroups   []string // resolved per message; Decide leaves it empty
	RecipientEvent string
	EchoEvent      string
	SenderRole     Role
}

// Routed reports whether the decision carries a broker routing key.
func (d RoutingDecision) Routed() bool {
	return d.RoutingKey != ""
}
