package notification

import (
	"context"
	"sync"

	"github.com/fieldworks/jobflow/internal/application/port/output"
	"github.com/fieldworks/jobflow/internal/domain/model"
)

// SentNotification records one Enqueue call
type SentNotification struct {
	Template   string
	Recipients model.Roles
	Payload    map[string]string
}

// MockNotificationGateway records enqueued notifications for tests
type MockNotificationGateway struct {
	mu   sync.Mutex
	sent []SentNotification
	Err  error
}

// NewMockNotificationGateway creates a recording notification gateway
func NewMockNotificationGateway() *MockNotificationGateway {
	return &MockNotificationGateway{}
}

// Enqueue records the notification
func (g *MockNotificationGateway) Enqueue(ctx context.Context, template string, recipients model.Roles, payload map[string]string) error {
	if g.Err != nil {
		return g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, SentNotification{
		Template:   template,
		Recipients: append(model.Roles(nil), recipients...),
		Payload:    payload,
	})
	return nil
}

// Sent returns a snapshot of recorded notifications
func (g *MockNotificationGateway) Sent() []SentNotification {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentNotification(nil), g.sent...)
}

// SentWithTemplate returns recorded notifications for a template
func (g *MockNotificationGateway) SentWithTemplate(template string) []SentNotification {
	var out []SentNotification
	for _, n := range g.Sent() {
		if n.Template == template {
			out = append(out, n)
		}
	}
	return out
}

var _ output.NotificationGateway = (*MockNotificationGateway)(nil)
