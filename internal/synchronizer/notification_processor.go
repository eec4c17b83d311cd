package synchronizer

import (
	"github.com/flagsync/go-client-sdk/internal/notification"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// NotificationProcessor routes data notifications from the push channel to the synchronizer of their
// resource kind.
type NotificationProcessor struct {
	flags   *FlagsSynchronizer
	facade  *ByKeyFacade
	loggers ldlog.Loggers
}

// NewNotificationProcessor creates a NotificationProcessor.
func NewNotificationProcessor(flags *FlagsSynchronizer, facade *ByKeyFacade, loggers ldlog.Loggers) *NotificationProcessor {
	return &NotificationProcessor{flags: flags, facade: facade, loggers: loggers}
}

// ProcessNotification implements push.NotificationSink.
func (p *NotificationProcessor) ProcessNotification(n notification.Notification) {
	switch typed := n.(type) {
	case notification.SplitUpdate, notification.SplitKill, notification.RuleBasedSegmentUpdate:
		p.flags.Process(n)
	case notification.SegmentsUpdate:
		p.facade.Process(typed)
	default:
		p.loggers.Debugf("Ignoring %s notification", n.NotificationType())
	}
}
