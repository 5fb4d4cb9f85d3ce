package domain

import (
	"encoding/json"
	"testing"
)

func TestParseMessageType(t *testing.T) {
	tests := []struct {
		tag  string
		want MessageType
		role Role
	}{
		{"merchant_first_contact", MessageTypeMerchantFirstContact, RoleMerchant},
		{"merchant_regular", MessageTypeMerchantRegular, RoleMerchant},
		{"merchant_farewell", MessageTypeMerchantFarewell, RoleMerchant},
		{"officer_first_contact", MessageTypeOfficerFirstContact, RoleComplianceOfficer},
		{"officer_regular", MessageTypeOfficerRegular, RoleComplianceOfficer},
		{"officer_farewell", MessageTypeOfficerFarewell, RoleComplianceOfficer},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got := ParseMessageType(tt.tag)
			if got != tt.want {
				t.Fatalf("ParseMessageType(%q) = %v, want %v", tt.tag, got, tt.want)
			}
			if got.String() != tt.tag {
				t.Errorf("String() = %q, want %q", got.String(), tt.tag)
			}
			role, ok := got.SenderRole()
			if !ok || role != tt.role {
				t.Errorf("SenderRole() = %q, %v; want %q", role, ok, tt.role)
			}
		})
	}
}

func TestParseMessageType_UnknownIsUnrouted(t *testing.T) {
	for _, tag := range []string{"", "MERCHANT_REGULAR", "merchant_hello", "unrouted"} {
		if got := ParseMessageType(tag); got != MessageTypeUnrouted {
			t.Errorf("ParseMessageType(%q) = %v, want unrouted", tag, got)
		}
	}
	if _, ok := MessageTypeUnrouted.SenderRole(); ok {
		t.Error("unrouted type must not have a sender role")
	}
}

func TestChatMessage_UnknownTagDecodes(t *testing.T) {
	var msg ChatMessage
	if err := json.Unmarshal([]byte(`{"id":"m1","type":"bogus","body":"hi"}`), &msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != MessageTypeUnrouted {
		t.Errorf("Type = %v, want unrouted", msg.Type)
	}

	data, err := json.Marshal(ChatMessage{ID: "m2", Type: MessageTypeOfficerRegular})
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["type"] != "officer_regular" {
		t.Errorf("type = %v, want officer_regular", raw["type"])
	}
}

func TestFault(t *testing.T) {
	err := NewFault(FaultTransientDelivery, "router.fanout", ErrUnroutedMessage)
	if !IsFault(err, FaultTransientDelivery) {
		t.Error("expected transient delivery fault")
	}
	if IsFault(err, FaultSelfEcho) {
		t.Error("unexpected self echo match")
	}
	if got := err.Error(); got != "router.fanout: transient_delivery: message type has no route" {
		t.Errorf("Error() = %q", got)
	}
}
