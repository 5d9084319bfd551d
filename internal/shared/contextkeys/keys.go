package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "codes-api context key " + string(c)
}

// RequestIDKey is the key for the per-request correlation id in context.Context
const RequestIDKey = contextKey("requestID")

// ClientIPKey is the key for the resolved client address (the rate limit key)
const ClientIPKey = contextKey("clientIP")

// OperationKey is the key for the operation being executed
const OperationKey = contextKey("operation")
