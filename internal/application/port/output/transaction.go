package output

import "context"

// TransactionManager runs a function inside a database transaction. The
// workflow engine uses it to commit the job mutation and the history append
// together or not at all.
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
