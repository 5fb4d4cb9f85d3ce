package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/internal/activity"
	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/internal/metrics"
	"github.com/pcidesk/chat-presence/internal/schedule"
	"github.com/pcidesk/chat-presence/pkg/log"
)

// Defaults for the monitor loop.
const (
	DefaultHeartbeatInterval = time.Minute
	DefaultStaleThreshold    = 2 * time.Minute
)

// Notifier delivers a named event to every connection in a group.
type Notifier interface {
	SendToGroup(groupID, event string, payload interface{}) error
}

// LinkSource provides the current presence links.
type LinkSource interface {
	AllLinks() []domain.PresenceLink
}

// HeartbeatPayload is sent to both populations on every tick.
type HeartbeatPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// OfflinePayload tells one side of a link that its counterpart went quiet.
type OfflinePayload struct {
	UserID       string `json:"user_id"`
	LastActivity int64  `json:"last_activity"`
	Timestamp    int64  `json:"timestamp"`
}

// TickReport summarises one monitor tick.
type TickReport struct {
	Links    int
	Notified int
	Faults   []error
}

// MonitorConfig holds the monitor's timings.
type MonitorConfig struct {
	HeartbeatInterval time.Duration
	StaleThreshold    time.Duration
}

// Monitor pings both populations and announces stale counterparties.
type Monitor struct {
	links    LinkSource
	notifier Notifier
	activity activity.Store
	cfg      MonitorConfig
	now      func() time.Time
	logger   zerolog.Logger
	task     *schedule.Task
}

func NewMonitor(links LinkSource, notifier Notifier, store activity.Store, cfg MonitorConfig, logger zerolog.Logger) *Monitor {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultStaleThreshold
	}
	m := &Monitor{
		links:    links,
		notifier: notifier,
		activity: store,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With().Str(log.FieldComponent, "presence.monitor").Logger(),
	}
	m.task = schedule.New("presence-monitor", cfg.HeartbeatInterval, func(ctx context.Context) { m.Tick(ctx) }, logger)
	return m
}

func (m *Monitor) Start(ctx context.Context) { m.task.Start(ctx) }

func (m *Monitor) Stop() { m.task.Stop() }

func (m *Monitor) Done() <-chan struct{} { return m.task.Done() }

// Tick runs one heartbeat and staleness pass.
func (m *Monitor) Tick(ctx context.Context) TickReport {
	now := m.now()
	metrics.PresenceTicks.Inc()

	var report TickReport
	ping := HeartbeatPayload{Timestamp: now.UnixMilli()}
	for _, hb := range []struct{ group, event string }{
		{domain.GroupMerchants, domain.EventHeartbeatMerchant},
		{domain.GroupComplianceOfficers, domain.EventHeartbeatOfficer},
	} {
		if err := m.notifier.SendToGroup(hb.group, hb.event, ping); err != nil {
			report.Faults = append(report.Faults, m.fault(domain.FaultTransientDelivery, "presence.heartbeat", err))
			m.logger.Warn().Err(err).Str(log.FieldGroupID, hb.group).Msg("heartbeat send failed")
		}
	}

	links := m.links.AllLinks()
	report.Links = len(links)
	for _, link := range links {
		notified, err := m.evaluate(ctx, now, link.MerchantID, link.OfficerID, domain.RoleMerchant, domain.EventMerchantOffline)
		if err != nil {
			report.Faults = append(report.Faults, err)
		}
		if notified {
			report.Notified++
		}

		notified, err = m.evaluate(ctx, now, link.OfficerID, link.MerchantID, domain.RoleComplianceOfficer, domain.EventComplianceOfficerOffline)
		if err != nil {
			report.Faults = append(report.Faults, err)
		}
		if notified {
			report.Notified++
		}
	}

	m.logger.Debug().
		Int("links", report.Links).
		Int("notified", report.Notified).
		Int("faults", len(report.Faults)).
		Msg("presence tick complete")
	return report
}

// evaluate checks one side of a link. A stale user is touched so the next
// tick stays quiet, then its counterpart is told.
func (m *Monitor) evaluate(ctx context.Context, now time.Time, userID, counterpartID string, role domain.Role, event string) (notified bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			notified = false
			err = m.fault(domain.FaultLinkEvaluation, "presence.evaluate", fmt.Errorf("panic: %v", r))
			m.logger.Error().Interface("panic", r).Str(log.FieldUserID, userID).Msg("link evaluation panicked")
		}
	}()

	last, err := m.activity.LastActivity(ctx, userID)
	if err != nil {
		if errors.Is(err, activity.ErrNotFound) {
			m.logger.Debug().Str(log.FieldUserID, userID).Msg("no activity record, skipping")
			return false, nil
		}
		m.logger.Error().Err(err).Str(log.FieldUserID, userID).Msg("activity lookup failed")
		return false, m.fault(domain.FaultLinkEvaluation, "presence.evaluate", err)
	}

	if now.Sub(last) <= m.cfg.StaleThreshold {
		return false, nil
	}

	if err := m.activity.Touch(ctx, userID, now); err != nil {
		m.logger.Error().Err(err).Str(log.FieldUserID, userID).Msg("activity touch failed")
		return false, m.fault(domain.FaultLinkEvaluation, "presence.touch", err)
	}

	payload := OfflinePayload{
		UserID:       userID,
		LastActivity: last.UnixMilli(),
		Timestamp:    now.UnixMilli(),
	}
	if err := m.notifier.SendToGroup(domain.UserGroup(counterpartID), event, payload); err != nil {
		m.logger.Warn().Err(err).
			Str(log.FieldUserID, userID).
			Str(log.FieldGroupID, counterpartID).
			Str(log.FieldEventName, event).
			Msg("offline notification failed")
		return false, m.fault(domain.FaultTransientDelivery, "presence.notify", err)
	}

	metrics.OfflineNotifications.WithLabelValues(string(role)).Inc()
	m.logger.Info().
		Str(log.FieldUserID, userID).
		Str(log.FieldRole, string(role)).
		Str(log.FieldGroupID, counterpartID).
		Dur("idle", now.Sub(last)).
		Msg("counterparty marked offline")
	return true, nil
}

func (m *Monitor) fault(kind domain.FaultKind, op string, err error) error {
	metrics.Faults.WithLabelValues(kind.String()).Inc()
	return domain.NewFault(kind, op, err)
}
