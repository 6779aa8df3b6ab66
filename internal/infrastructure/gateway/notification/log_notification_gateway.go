package notification

import (
	"context"
	"strings"

	"github.com/fieldworks/jobflow/internal/app"
	"github.com/fieldworks/jobflow/internal/application/port/output"
	"github.com/fieldworks/jobflow/internal/domain/model"
)

// LogNotificationGateway writes notifications to the process log. This is
// the default gateway for CLI use; a mail or webhook transport slots in
// behind the same interface.
type LogNotificationGateway struct{}

// NewLogNotificationGateway creates a log-backed notification gateway
func NewLogNotificationGateway() output.NotificationGateway {
	return &LogNotificationGateway{}
}

// Enqueue logs the notification instead of delivering it
func (g *LogNotificationGateway) Enqueue(ctx context.Context, template string, recipients model.Roles, payload map[string]string) error {
	parts := make([]string, 0, len(payload))
	for k, v := range payload {
		parts = append(parts, k+"="+v)
	}
	app.GetLogger().Info("notification %s to [%s]: %s",
		template, strings.Join(recipients.Strings(), ", "), strings.Join(parts, " "))
	return nil
}
