package shared

import "context"

// Role identifies the kind of actor recorded against a ledger event.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Attribution names who performed a ledger event. It is supplied by the
// auth layer (outside this core) and stored alongside invoices, payments
// and manual entries.
type Attribution struct {
	Role   Role  `json:"role"`
	UserID int64 `json:"user_id"`
}

// Valid reports whether the attribution carries a known role and a user id.
func (a Attribution) Valid() bool {
	return a.UserID > 0 && (a.Role == RoleAdmin || a.Role == RoleEmployee)
}

type attributionContextKey struct{}

// ContextWithAttribution stores the actor attribution in context.
func ContextWithAttribution(ctx context.Context, a Attribution) context.Context {
	return context.WithValue(ctx, attributionContextKey{}, a)
}

// AttributionFromContext extracts the actor attribution from context.
func AttributionFromContext(ctx context.Context) Attribution {
	a, _ := ctx.Value(attributionContextKey{}).(Attribution)
	return a
}
