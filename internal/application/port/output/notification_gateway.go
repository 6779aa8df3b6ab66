package output

import (
	"context"

	"github.com/fieldworks/jobflow/internal/domain/model"
)

// Template names the engine enqueues. Delivery transport (mail, SMS) is the
// notification collaborator's concern; the engine only decides to enqueue.
const (
	TemplatePhaseEntered  = "phase_entered"
	TemplateEscalation    = "phase_escalation"
	TemplateCancellation  = "job_cancelled"
	TemplateReactivation  = "job_reactivated"
	TemplateRuleTriggered = "rule_triggered"
)

// NotificationGateway enqueues a notification for delivery. Fire and
// forget: delivery failure is not retried here.
type NotificationGateway interface {
	Enqueue(ctx context.Context, template string, recipients model.Roles, payload map[string]string) error
}
