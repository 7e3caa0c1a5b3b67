// Package upstream is the HTTP connector for the property data provider.
//
// It implements the driven upstream ports: OAuth2 client-credentials
// token acquisition, the paged listing query, the per-item image endpoint
// and the asset endpoint. Upstream JSON is decoded here, once, into
// domain.RawItem and domain.Asset; no upstream wire type leaves this package.
//
// Requests are throttled by a token bucket and by the provider's
// X-RateLimit-* headers. The listing query is retried on transient
// server errors with exponential backoff and jitter.
package upstream
