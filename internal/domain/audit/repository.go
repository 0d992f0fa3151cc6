package audit

import "context"

// AuditRepository is a write-only sink.
type AuditRepository interface {
	Record(ctx context.Context, entry Entry) error
}
