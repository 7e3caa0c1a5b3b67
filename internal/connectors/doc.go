// Package connectors holds the clients for upstream data providers.
// Each connector implements the driven upstream ports (credential,
// listing, per-item images and asset lookup) for one provider.
//
// The upstream subpackage talks to the property data provider.
package connectors
