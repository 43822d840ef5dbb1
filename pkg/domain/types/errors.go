package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures so callers can decide whether to retry.
var (
	// TagTransient marks failures worth retrying (timeouts, rate limits,
	// overloaded providers, 5xx-equivalent responses).
	TagTransient = goerr.NewTag("transient")

	// TagPermanent marks failures that retrying cannot fix
	// (authentication, malformed requests).
	TagPermanent = goerr.NewTag("permanent")

	// TagBadRequest marks client-caused failures (empty query, invalid config values)
	TagBadRequest = goerr.NewTag("bad_request")

	// TagNotFound marks lookups for entities that do not exist. Each
	// repository backend's ErrNotFound carries it.
	TagNotFound = goerr.NewTag("not_found")
)

// Sentinel errors shared across packages. Component-specific sentinels
// live in their own packages; these are the cross-cutting taxonomy of
// the orchestration layer.
var (
	// ErrInvalidConfiguration is fatal at startup
	ErrInvalidConfiguration = goerr.New("invalid configuration", goerr.T(TagBadRequest))

	// ErrAllProvidersExhausted is returned after retry and fallback budgets are spent
	ErrAllProvidersExhausted = goerr.New("all providers exhausted")

	// ErrStorageUnavailable is returned when a storage backend cannot be reached.
	// Writes must never be silently dropped.
	ErrStorageUnavailable = goerr.New("storage unavailable", goerr.T(TagTransient))

	// ErrUnsupportedFormat is returned per document for unrecognized content types
	ErrUnsupportedFormat = goerr.New("unsupported document format", goerr.T(TagBadRequest))

	// ErrSchemaAnalysis marks a relational connection whose schema could not
	// be analyzed. Non-fatal: the connection is excluded until the next refresh.
	ErrSchemaAnalysis = goerr.New("schema analysis failed")
)

// IsTransient reports whether err is worth retrying. Errors explicitly
// tagged permanent always lose, even if somebody also tagged them transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if goerr.HasTag(err, TagPermanent) {
		return false
	}
	return goerr.HasTag(err, TagTransient)
}
