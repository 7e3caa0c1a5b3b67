// Package domain defines the core business entities for propfeed.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawItem: An upstream listing decoded at the connector boundary
//   - CanonicalRecord: The stable, fully defaulted output shape
//   - AggregateSnapshot: The published result of one orchestration run
//   - ScheduledTask: A recurring background task
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
