// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - CacheStore: Volatile key/value store for published snapshots
//   - CredentialProvider: Obtains an upstream bearer credential
//   - ListingSource: Queries the upstream listing endpoint
//   - AssetLookup: Resolves a single asset by ID
//   - Normaliser / NormaliserRegistry: Maps raw items to canonical records
//   - SchedulerStore: Scheduler task state and run history
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ItemImageSource: Per-item image endpoint. Without it, items only
//     carry the image references embedded in the listing response.
//   - SnapshotArchive: Durable copy of the last published snapshot, used
//     to warm the cache on startup.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
