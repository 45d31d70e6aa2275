/*
store.go - Key-value persistence interface for settings blobs

PURPOSE:
  Pricing policy overrides and surge schedule rules are stored as JSON blobs
  under well-known keys. The store does not interpret them; the factory
  package parses and merges them. Last write wins, there is no transaction
  across keys.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: settings table
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - factory/policy.go, factory/surge.go: Repositories built on this
*/
package generic

import "context"

// Well-known settings keys.
const (
	KeyPricingPolicy = "pricing_policy_override"
	KeySurgeRules    = "surge_schedule_rules"
)

// KeyValueStore persists opaque blobs.
type KeyValueStore interface {
	// Get returns the blob stored under key. found is false when absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put replaces the blob stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
