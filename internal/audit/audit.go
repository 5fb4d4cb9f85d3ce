package audit

import (
	"context"

	"github.com/pcidesk/chat-presence/pkg/log"
)

// Audit actions for the chat/presence service.
const (
	ActionConnect      = "chat.connect"
	ActionDisconnect   = "chat.disconnect"
	ActionAuthFailed   = "chat.auth_failed"
	ActionSendMessage  = "chat.send_message"
	ActionDuplicate    = "chat.duplicate_message"
	ActionRoleMismatch = "chat.role_mismatch"
	ActionLink         = "presence.link"
	ActionUnlink       = "presence.unlink"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}

// LogTarget emits an audit log for an action by userID on targetID.
func LogTarget(ctx context.Context, action string, userID string, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}
