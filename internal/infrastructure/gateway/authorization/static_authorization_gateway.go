package authorization

import (
	"context"
	"sync"

	"github.com/fieldworks/jobflow/internal/application/port/output"
	"github.com/fieldworks/jobflow/internal/domain/model"
)

// StaticAuthorizationGateway resolves roles from an in-memory assignment
// table. It backs CLI use where role assignments come from configuration;
// a directory-service gateway slots in behind the same interface.
type StaticAuthorizationGateway struct {
	mu          sync.RWMutex
	assignments map[string]model.Roles
}

// NewStaticAuthorizationGateway creates a gateway over the given
// actor-to-roles table
func NewStaticAuthorizationGateway(assignments map[string][]string) *StaticAuthorizationGateway {
	table := make(map[string]model.Roles, len(assignments))
	for actor, roles := range assignments {
		table[actor] = model.RolesFromStrings(roles)
	}
	return &StaticAuthorizationGateway{assignments: table}
}

// GetRoles returns the actor's roles. Unknown actors hold no roles; the
// validator treats that as insufficient for restricted phases.
func (g *StaticAuthorizationGateway) GetRoles(ctx context.Context, actor string) (model.Roles, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append(model.Roles(nil), g.assignments[actor]...), nil
}

// Assign replaces the roles held by an actor
func (g *StaticAuthorizationGateway) Assign(actor string, roles []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assignments[actor] = model.RolesFromStrings(roles)
}

var _ output.AuthorizationGateway = (*StaticAuthorizationGateway)(nil)
