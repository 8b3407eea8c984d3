package auth

import "errors"

// Error taxonomy for the auth flows. Every flow returns one of these (possibly
// wrapped with context); callers branch with errors.Is and map to transport
// codes at the edge.
var (
	// ErrInvalidInput means the caller supplied an empty email or password.
	ErrInvalidInput = errors.New("email and password are required")

	// ErrEmailTaken means an account with that email already exists.
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrInvalidCredentials is returned for every local login failure:
	// unknown email, non-local account, or wrong password. Collapsing the
	// three causes prevents account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidAssertion means the federated identity assertion failed
	// signature, issuer, audience, or expiry checks.
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	// ErrMissingEmail means a verified assertion carried no email claim;
	// email is mandatory for account linking.
	ErrMissingEmail = errors.New("identity assertion has no email claim")

	// ErrStoreUnavailable wraps credential store failures outside the
	// documented duplicate/not-found cases. Possibly retryable by the
	// caller; never retried here.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrInvalidToken is returned by token verification for malformed
	// encoding, signature mismatch, or expiry. No partial claims are ever
	// returned alongside it.
	ErrInvalidToken = errors.New("invalid or expired token")
)
