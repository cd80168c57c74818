package forest

import "github.com/prometheus/client_golang/prometheus"

// Config holds a database's tunable options.
type Config struct {
	// BranchFactor is B, the max number of pivots per branch plus one.
	BranchFactor int
	// MaxDataSize is the leaf-size cap option. Nothing in this module
	// reads it: the builder splits any set of BranchFactor or more items
	// (unless the split fails to separate them) whatever MaxDataSize says,
	// so leaf size depends on BranchFactor alone.
	MaxDataSize int
	// BaseSize is the staging buffer threshold that triggers promotion.
	BaseSize int
	// Dimension is the axis arity, fixed for the lifetime of a DB.
	Dimension int
	// Registerer receives this DB's Prometheus metrics. Defaults to a
	// private registry (not prometheus.DefaultRegisterer) so opening
	// multiple DBs in one process — as the test suite does — never
	// collides on duplicate metric registration.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the standard configuration for the given
// dimension (branch_factor=9, max_data_size=100, base_size=64).
func DefaultConfig(dimension int) Config {
	return Config{
		BranchFactor: 9,
		MaxDataSize:  100,
		BaseSize:     64,
		Dimension:    dimension,
	}
}
