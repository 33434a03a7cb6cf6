// Package notifier sends desktop notifications when archives are published
package notifier

import (
	"fmt"
	"time"

	"github.com/dorkodu/pharpub/pkg/logger"
	"github.com/gen2brain/beeep"
)

// SendFunc delivers a single notification
type SendFunc func(title, message string) error

// PublishNotifier handles publish notifications
type PublishNotifier struct {
	enabled   bool
	beepOnErr bool
	send      SendFunc
	beep      func() error
	logger    logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	// BeepOnFailure plays the system beep after a failure notification
	BeepOnFailure bool
}

// Option customizes a PublishNotifier
type Option func(*PublishNotifier)

// WithSender replaces the desktop notification backend
func WithSender(send SendFunc) Option {
	return func(n *PublishNotifier) {
		n.send = send
		n.beep = func() error { return nil }
	}
}

// New creates a new publish notifier
func New(config Config, log logger.Logger, opts ...Option) *PublishNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	n := &PublishNotifier{
		enabled:   config.Enabled,
		beepOnErr: config.BeepOnFailure,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
		logger: log,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Enabled reports whether notifications are sent
func (n *PublishNotifier) Enabled() bool {
	return n != nil && n.enabled
}

// NotifyPublishSuccess notifies that an archive was written
func (n *PublishNotifier) NotifyPublishSuccess(job, publishRoot string, duration time.Duration) {
	if !n.Enabled() {
		return
	}
	message := fmt.Sprintf("%s published to %s in %s", job, publishRoot, FormatDuration(duration))
	n.sendNotification("✅ Published", message)
}

// NotifyPublishFailure notifies that publishing failed
func (n *PublishNotifier) NotifyPublishFailure(job string, err error) {
	if !n.Enabled() {
		return
	}
	n.sendNotification("❌ Publish Failed", fmt.Sprintf("%s: %v", job, err))

	if n.beepOnErr {
		if err := n.beep(); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func (n *PublishNotifier) sendNotification(title, message string) {
	if err := n.send(title, message); err != nil {
		// Headless machines have no notification daemon
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}
}

// FormatDuration renders a duration the way publish summaries print it
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
