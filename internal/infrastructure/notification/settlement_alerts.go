package notification

import (
	"context"
	"fmt"

	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Alert types
const (
	AlertSettled = "settled"
	AlertDeleted = "deleted"
)

// Alert is a notification about a lifecycle change of an obligation
type Alert struct {
	Type         string   `json:"type"`
	ObligationID string   `json:"obligation_id"`
	BranchID     string   `json:"branch_id,omitempty"`
	Remaining    string   `json:"remaining,omitempty"`
	Channels     []string `json:"channels"`
}

// Notifier delivers alerts.
// Implementations can support different channels (in-app, email, chat, etc.)
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// SettlementAlertHandler turns ledger events into alerts:
// an obligation reaching PAID and an obligation being deleted.
type SettlementAlertHandler struct {
	logger   *zap.Logger
	notifier Notifier
	channels []string
}

// NewSettlementAlertHandler creates the handler. Alerts go to the in-app channel unless WithChannels says otherwise.
func NewSettlementAlertHandler(logger *zap.Logger, notifier Notifier) *SettlementAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementAlertHandler{
		logger:   logger,
		notifier: notifier,
		channels: []string{"in_app"},
	}
}

// WithChannels overrides the delivery channels
func (h *SettlementAlertHandler) WithChannels(channels ...string) *SettlementAlertHandler {
	if len(channels) > 0 {
		h.channels = channels
	}
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *SettlementAlertHandler) EventTypes() []string {
	return []string{ledger.EventTypeObligationUpdated, ledger.EventTypeObligationDeleted}
}

// Handle processes one ledger event
func (h *SettlementAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var alert Alert
	switch ev := event.(type) {
	case *ledger.ObligationUpdatedEvent:
		if ev.Status != ledger.StatusPaid || ev.PreviousStatus == ledger.StatusPaid {
			return nil
		}
		alert = Alert{
			Type:         AlertSettled,
			ObligationID: ev.ObligationID.String(),
			Remaining:    ev.RemainingAmount.String(),
		}
	case *ledger.ObligationDeletedEvent:
		alert = Alert{
			Type:         AlertDeleted,
			ObligationID: ev.ObligationID.String(),
		}
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	if branch := event.BranchID(); branch != nil {
		alert.BranchID = branch.String()
	}
	alert.Channels = h.channels

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.Notify(ctx, alert); err != nil {
		return fmt.Errorf("failed to send %s alert for %s: %w", alert.Type, alert.ObligationID, err)
	}
	h.logger.Debug("settlement alert sent",
		zap.String("type", alert.Type),
		zap.String("obligation_id", alert.ObligationID),
		zap.Strings("channels", alert.Channels),
	)
	return nil
}

var _ shared.EventHandler = (*SettlementAlertHandler)(nil)

// LoggingNotifier writes alerts to the log
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier creates a new logging notifier
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

// Notify logs the alert
func (n *LoggingNotifier) Notify(_ context.Context, alert Alert) error {
	n.logger.Info("SETTLEMENT ALERT",
		zap.String("type", alert.Type),
		zap.String("obligation_id", alert.ObligationID),
		zap.String("branch_id", alert.BranchID),
		zap.String("remaining", alert.Remaining),
		zap.Strings("channels", alert.Channels),
	)
	return nil
}

var _ Notifier = (*LoggingNotifier)(nil)
