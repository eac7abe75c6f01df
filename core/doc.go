// Package core contains the client contracts shared by the session guard,
// transport resolver, realtime channel and countdown reconciler: the error
// taxonomy, configuration, observability and credential storage contracts.
// Adapter packages depend on core; core must not depend on transport,
// realtime or storage adapters.
package core
