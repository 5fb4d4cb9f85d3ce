package router

import (
	"fmt"

	"github.com/pcidesk/chat-presence/internal/domain"
)

// Decide classifies a message type. Unrouted types get a zero decision.
func Decide(mt domain.MessageType) domain.RoutingDecision {
	switch mt {
	case domain.MessageTypeMerchantFirstContact:
		return domain.RoutingDecision{
			RoutingKey: domain.RoutingKeyMerchantFirstChat,
			SenderRole: domain.RoleMerchant,
		}
	case domain.MessageTypeMerchantRegular:
		return domain.RoutingDecision{
			RoutingKey:     domain.RoutingKeyMerchantRegularChat,
			Live:           true,
			RecipientEvent: domain.EventReceiveMerchantRegularChat,
			EchoEvent:      domain.EventEchoMerchantRegularChat,
			SenderRole:     domain.RoleMerchant,
		}
	case domain.MessageTypeMerchantFarewell:
		return domain.RoutingDecision{
			RoutingKey:     domain.RoutingKeyMerchantFarewellChat,
			Live:           true,
			RecipientEvent: domain.EventReceiveMerchantFarewellChat,
			EchoEvent:      domain.EventEchoMerchantFarewellChat,
			SenderRole:     domain.RoleMerchant,
		}
	case domain.MessageTypeOfficerFirstContact:
		return domain.RoutingDecision{
			RoutingKey:     domain.RoutingKeyOfficerFirstChat,
			Live:           true,
			RecipientEvent: domain.EventReceiveOfficerFirstChat,
			EchoEvent:      domain.EventEchoOfficerFirstChat,
			SenderRole:     domain.RoleComplianceOfficer,
		}
	case domain.MessageTypeOfficerRegular:
		return domain.RoutingDecision{
			RoutingKey:     domain.RoutingKeyOfficerRegularChat,
			Live:           true,
			RecipientEvent: domain.EventReceiveOfficerRegularChat,
			EchoEvent:      domain.EventEchoOfficerRegularChat,
			SenderRole:     domain.RoleComplianceOfficer,
		}
	case domain.MessageTypeOfficerFarewell:
		return domain.RoutingDecision{
			RoutingKey:     domain.RoutingKeyOfficerFarewellChat,
			Live:           true,
			RecipientEvent: domain.EventReceiveOfficerFarewellChat,
			EchoEvent:      domain.EventEchoOfficerFarewellChat,
			SenderRole:     domain.RoleComplianceOfficer,
		}
	case domain.MessageTypeUnrouted:
		return domain.RoutingDecision{}
	default:
		panic(fmt.Sprintf("router: unhandled message type %d", int(mt)))
	}
}
