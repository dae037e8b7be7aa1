package mvtree

import "github.com/cockroachdb/errors"

const (
	DefaultValueBlockSize           = 64
	DefaultMinValueBlockSize        = 16
	DefaultInternalNodeBlockSize    = 63
	DefaultMinInternalNodeBlockSize = 15

	// DefaultReportCacheSize is the number of consistency reports kept per
	// tree, keyed by committed generation.
	DefaultReportCacheSize = 32

	// DefaultMaxReaders bounds the number of concurrent read transactions.
	DefaultMaxReaders = 128
)

// Options configures a tree. Block sizes are fixed at construction.
type Options struct {
	valueBlockSize           int // Maximum entries held by a leaf at rest.
	minValueBlockSize        int // Minimum entries held by a non-root leaf.
	internalNodeBlockSize    int // Maximum children held by an internal node at rest. Must be odd.
	minInternalNodeBlockSize int // Minimum separator keys held by a non-root internal node.

	reportCacheSize int
	logger          Logger
	metrics         *Metrics
}

// DefaultOptions returns the default tree configuration.
func DefaultOptions() Options {
	return Options{
		valueBlockSize:           DefaultValueBlockSize,
		minValueBlockSize:        DefaultMinValueBlockSize,
		internalNodeBlockSize:    DefaultInternalNodeBlockSize,
		minInternalNodeBlockSize: DefaultMinInternalNodeBlockSize,
		reportCacheSize:          DefaultReportCacheSize,
		logger:                   DiscardLogger{},
	}
}

// Option configures tree options using the functional options pattern.
type Option func(*Options)

// WithValueBlockSize sets the maximum number of entries in a leaf.
//
//goland:noinspection GoUnusedExportedFunction
func WithValueBlockSize(n int) Option {
	return func(opts *Options) {
		opts.valueBlockSize = n
	}
}

// WithMinValueBlockSize sets the minimum number of entries in a non-root
// leaf. It must not exceed ceil(valueBlockSize/2)-1 so that a merged leaf is
// never immediately full.
//
//goland:noinspection GoUnusedExportedFunction
func WithMinValueBlockSize(n int) Option {
	return func(opts *Options) {
		opts.minValueBlockSize = n
	}
}

// WithInternalNodeBlockSize sets the maximum number of children of an
// internal node. It must be odd.
//
//goland:noinspection GoUnusedExportedFunction
func WithInternalNodeBlockSize(n int) Option {
	return func(opts *Options) {
		opts.internalNodeBlockSize = n
	}
}

// WithMinInternalNodeBlockSize sets the minimum number of separator keys in
// a non-root internal node.
//
//goland:noinspection GoUnusedExportedFunction
func WithMinInternalNodeBlockSize(n int) Option {
	return func(opts *Options) {
		opts.minInternalNodeBlockSize = n
	}
}

// WithBlockSizes sets all four block sizes at once.
func WithBlockSizes(value, minValue, internal, minInternal int) Option {
	return func(opts *Options) {
		opts.valueBlockSize = value
		opts.minValueBlockSize = minValue
		opts.internalNodeBlockSize = internal
		opts.minInternalNodeBlockSize = minInternal
	}
}

// WithReportCacheSize sets how many consistency reports are cached. Zero
// disables the cache.
func WithReportCacheSize(n int) Option {
	return func(opts *Options) {
		opts.reportCacheSize = n
	}
}

// WithLogger sets the logger used by the tree.
func WithLogger(logger Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithMetrics sets the metrics the tree reports splits, merges and steals to.
func WithMetrics(m *Metrics) Option {
	return func(opts *Options) {
		opts.metrics = m
	}
}

// Validate reports whether the block sizes satisfy the bounds that keep a
// freshly merged node from being full and a freshly split node from
// underflowing.
func (o Options) Validate() error {
	switch {
	case o.valueBlockSize < 3:
		return errors.Wrapf(ErrInvalidBlockSize, "value block size %d is below 3", o.valueBlockSize)
	case o.minValueBlockSize < 1 || o.minValueBlockSize > ceilHalf(o.valueBlockSize)-1:
		return errors.Wrapf(ErrInvalidBlockSize, "min value block size %d outside [1, %d]",
			o.minValueBlockSize, ceilHalf(o.valueBlockSize)-1)
	case o.internalNodeBlockSize < 3 || o.internalNodeBlockSize%2 == 0:
		return errors.Wrapf(ErrInvalidBlockSize, "internal node block size %d must be odd and at least 3",
			o.internalNodeBlockSize)
	case o.minInternalNodeBlockSize < 1 || o.minInternalNodeBlockSize > ceilHalf(o.internalNodeBlockSize)-1:
		return errors.Wrapf(ErrInvalidBlockSize, "min internal node block size %d outside [1, %d]",
			o.minInternalNodeBlockSize, ceilHalf(o.internalNodeBlockSize)-1)
	}
	return nil
}

func ceilHalf(n int) int {
	return (n + 1) / 2
}

// ManagerOptions configures a transaction manager.
type ManagerOptions struct {
	maxReaders int
	logger     Logger
	metrics    *Metrics
}

func defaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		maxReaders: DefaultMaxReaders,
		logger:     DiscardLogger{},
	}
}

// ManagerOption configures manager options using the functional options
// pattern.
type ManagerOption func(*ManagerOptions)

// WithMaxReaders bounds the number of concurrent read transactions.
func WithMaxReaders(n int) ManagerOption {
	return func(opts *ManagerOptions) {
		opts.maxReaders = n
	}
}

// WithManagerLogger sets the logger used by the manager.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(opts *ManagerOptions) {
		opts.logger = logger
	}
}

// WithManagerMetrics sets the metrics the manager reports commits,
// rollbacks and readers to.
func WithManagerMetrics(m *Metrics) ManagerOption {
	return func(opts *ManagerOptions) {
		opts.metrics = m
	}
}
