package uptane

import "github.com/datatrails/go-datatrails-common/logger"

// Config holds the fixed capacity limits and optional dependencies an
// Agent is built with. It follows the teacher's ReaderOptions pattern
// (massifs/readeroptions.go): an unexported options struct, a copy helper,
// and With* constructors that return an Option closure rather than taking
// a struct literal, so new knobs can be added without breaking callers.
type Config struct {
	maxSignatures    int
	maxKeysPerQuorum int
	maxMetadataBytes int
	tokenPoolSize    int
	log              Logger
}

// defaultConfig mirrors the fixed-size pools a constrained device would
// compile in: small, bounded, and generous enough for a handful of root
// keys and a few concurrently-checked signatures.
func defaultConfig() Config {
	return Config{
		maxSignatures:    8,
		maxKeysPerQuorum: 16,
		maxMetadataBytes: 16 * 1024,
		tokenPoolSize:    512,
		log:              noopLogger{},
	}
}

// ConfigCopy returns an independent copy of cfg, the same shape as the
// teacher's ReaderOptionsCopy — cheap here since Config holds no slices,
// but kept so Option composition never aliases a shared struct.
func ConfigCopy(cfg Config) Config {
	return cfg
}

// Option mutates a Config in place; apply a sequence of Options with
// NewConfig.
type Option func(*Config)

// NewConfig builds a Config from defaults plus the given options, in the
// style of massifs.NewReaderOptions.
func NewConfig(opts ...Option) Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithMaxSignatures bounds how many signatures a single signed envelope
// verification will check (and therefore how many verify contexts the
// signature pool must hold).
func WithMaxSignatures(n int) Option {
	return func(c *Config) { c.maxSignatures = n }
}

// WithMaxKeysPerQuorum sizes the fixed key-table pool: a root document
// whose "keys" map holds more well-formed keys than this is refused with
// ErrTooManyKeys. The keyids list of a single role is not bounded by it.
func WithMaxKeysPerQuorum(n int) Option {
	return func(c *Config) { c.maxKeysPerQuorum = n }
}

// WithMaxMetadataBytes bounds the size of a root or targets document this
// agent will accept, backing ErrOversizedMetadata / AttackOversizedMetadata.
func WithMaxMetadataBytes(n int) Option {
	return func(c *Config) { c.maxMetadataBytes = n }
}

// WithTokenPoolSize sizes the fixed JSON token arena.
func WithTokenPoolSize(n int) Option {
	return func(c *Config) { c.tokenPoolSize = n }
}

// WithLogger attaches a diagnostics sink built from a
// go-datatrails-common logger.Logger (see NewLogger).
func WithLogger(sugar logger.Logger) Option {
	return func(c *Config) { c.log = NewLogger(sugar) }
}

// WithRawLogger attaches an already-adapted uptane.Logger directly —
// useful for tests that want to assert on logged lines without pulling in
// the datatrails logger package.
func WithRawLogger(log Logger) Option {
	return func(c *Config) { c.log = log }
}
