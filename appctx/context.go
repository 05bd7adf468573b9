package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (middlewares <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeySessionToken  = ContextKey("SessionToken")
	ContextKeyAdminUsername = ContextKey("AdminUsername")
	ContextKeyRegNo         = ContextKey("RegNo")
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeyIsAdmin is true when the request carries an authenticated admin session.
	ContextKeyIsAdmin = ContextKey("IsAdmin")

	// ContextKeyDeskSubject names the loan-desk service credential that authorised the request.
	ContextKeyDeskSubject = ContextKey("DeskSubject")

	// ContextKeySkipLoanGuard disables the returned-loan update guard (maintenance tooling only).
	ContextKeySkipLoanGuard = ContextKey("SkipLoanGuard")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	v, ok := ctx.Value(key).(bool)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
