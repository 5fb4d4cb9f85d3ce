package domain

import (
	"time"
)

// Role identifies which population a user belongs to.
type Role string

const (
	RoleMerchant          Role = "merchant"
	RoleComplianceOfficer Role = "compliance_officer"
)

// ParseRole returns the role for s and whether it is known.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleMerchant:
		return RoleMerchant, true
	case RoleComplianceOfficer:
		return RoleComplianceOfficer, true
	default:
		return "", false
	}
}

// Population broadcast groups. Every connected user also has a group named
// after its own user id.
const (
	GroupMerchants          = "merchants"
	GroupComplianceOfficers = "compliance_officers"
)

// PopulationGroup returns the broadcast group that every connection of role joins.
func PopulationGroup(role Role) string {
	if role == RoleComplianceOfficer {
		return GroupComplianceOfficers
	}
	return GroupMerchants
}

// UserGroup returns the group addressing every connection of a user.
func UserGroup(userID string) string {
	return userID
}

// ChatMessage is one turn of a merchant/officer conversation.
type ChatMessage struct {
	ID             string      `json:"id"`
	SenderID       string      `json:"sender_id"`
	CounterpartIDs []string    `json:"counterpart_ids,omitempty"`
	Type           MessageType `json:"type"`
	Body           string      `json:"body"`
	Timestamp      time.Time   `json:"timestamp"`
	TenantID       string      `json:"tenant_id,omitempty"`
}

// PresenceLink pairs a compliance officer with the merchant they are attending.
type PresenceLink struct {
	OfficerID  string `json:"officer_id"`
	MerchantID string `json:"merchant_id"`
}
