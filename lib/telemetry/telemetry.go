package telemetry

import (
	"fmt"
)

// API is how the postcard creator clients report what happens to them. Tests
// swap it for a recorder to assert that failures are reported.
type API interface {
	// ReportBroken reports a failure that needs attention, like an upstream
	// endpoint answering with an unexpected status or a page that no longer
	// has the field the login depends on.
	//
	// `id` names the operation that broke, `<type>.<operation>` in lowercase with
	// dashes between words: `client.login`, `client.token-exchange`,
	// `client.create-mailing`. The package is added by ScopedAPI, so
	// `postcreator_core: client.request` reads as "a rest request of the core
	// client failed". Details such as status codes or endpoints go into params.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unusual that is not necessarily a
	// failure, like an expired access token. `id` follows ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports progress, like which login round is running.
	// Credentials must never be passed as params.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current value of a counter, like the number of
	// postcards a client has ordered. Values are points in time, not deltas.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id and debug message with a namespace, nesting
// scopes yields `outer: inner: id`.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
