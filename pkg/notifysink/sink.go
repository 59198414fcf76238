// Package notifysink defines the Notification Sink contract.
// and ships a bounded, worker-pool-backed in-memory reference
// implementation. Concrete transports (SMTP, Slack,
// PagerDuty APIs) are external collaborators per spec §1; this package only
// queues and best-effort "delivers" (marks Sent) records so the rest of the
// core has something real to drive in tests.
package notifysink

import (
	"context"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// Sink accepts a notification record for best-effort delivery.
// Implementations own retry/backoff for transport-level failures.
type Sink interface {
	QueueNotification(ctx context.Context, n *model.Notification) error
}
