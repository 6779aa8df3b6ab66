package output

import (
	"context"

	"github.com/fieldworks/jobflow/internal/domain/model"
)

// AuthorizationGateway resolves the roles an actor holds. The engine never
// consults ambient session state; roles are resolved once per call and
// threaded through explicitly.
type AuthorizationGateway interface {
	GetRoles(ctx context.Context, actor string) (model.Roles, error)
}
