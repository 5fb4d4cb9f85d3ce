package domain

import "fmt"

// MessageType is the closed set of chat message kinds. Unknown wire tags parse
// to MessageTypeUnrouted instead of failing.
type MessageType int

const (
	MessageTypeUnrouted MessageType = iota
	MessageTypeMerchantFirstContact
	MessageTypeMerchantRegular
	MessageTypeMerchantFarewell
	MessageTypeOfficerFirstContact
	MessageTypeOfficerRegular
	MessageTypeOfficerFarewell
)

var messageTypeTags = map[MessageType]string{
	MessageTypeMerchantFirstContact: "merchant_first_contact",
	MessageTypeMerchantRegular:      "merchant_regular",
	MessageTypeMerchantFarewell:     "merchant_farewell",
	MessageTypeOfficerFirstContact:  "officer_first_contact",
	MessageTypeOfficerRegular:       "officer_regular",
	MessageTypeOfficerFarewell:      "officer_farewell",
}

// ParseMessageType maps a wire tag to its MessageType.
func ParseMessageType(tag string) MessageType {
	for mt, t := range messageTypeTags {
		if t == tag {
			return mt
		}
	}
	return MessageTypeUnrouted
}

// String returns the wire tag, or "unrouted".
func (mt MessageType) String() string {
	if tag, ok := messageTypeTags[mt]; ok {
		return tag
	}
	return "unrouted"
}

// SenderRole returns the role allowed to send mt.
func (mt MessageType) SenderRole() (Role, bool) {
	switch mt {
	case MessageTypeMerchantFirstContact, MessageTypeMerchantRegular, MessageTypeMerchantFarewell:
		return RoleMerchant, true
	case MessageTypeOfficerFirstContact, MessageTypeOfficerRegular, MessageTypeOfficerFarewell:
		return RoleComplianceOfficer, true
	case MessageTypeUnrouted:
		return "", false
	default:
		panic(fmt.Sprintf("domain: unhandled message type %d", int(mt)))
	}
}

func (mt MessageType) MarshalText() ([]byte, error) {
	return []byte(mt.String()), nil
}

func (mt *MessageType) UnmarshalText(text []byte) error {
	*mt = ParseMessageType(string(text))
	return nil
}
