package abacus

import (
	"fmt"

	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"
)

// MaxCells bounds the number of cells in a single counter matrix.
const MaxCells = 1 << 24

// defaultCrumbTableSize matches the tracking table size the crumb table is
// pre-sized with unless overridden.
const defaultCrumbTableSize = 4096

// config holds Abacus configuration.
type config struct {
	// Name is attached as a "name" label to exported metrics when set.
	// Default: "" (no label)
	Name string

	// Logger receives lifecycle and rejected-input messages.
	// Default: zap.NewNop()
	Logger *zap.Logger

	// Clock is the time source for every timestamp.
	// Default: SystemClock{}
	Clock Clock

	// CrumbTableSize pre-sizes the in-flight task table.
	// Default: 4096
	CrumbTableSize int

	// StrictStart rejects TaskStart on a cell that is already started instead of
	// overwriting its start time.
	// Default: false
	StrictStart bool
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		Logger:         zap.NewNop(),
		Clock:          SystemClock{},
		CrumbTableSize: defaultCrumbTableSize,
	}
}

// validateConfig checks the dimensions together with the assembled options.
func validateConfig(cfg *config, numTasks, numEvents, numClasses int) error {
	dims := []struct {
		name string
		n    int
	}{
		{"task kinds", numTasks},
		{"event kinds", numEvents},
		{"classes", numClasses},
	}
	for _, d := range dims {
		if d.n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", fmt.Sprintf("number of %s must be > 0, got %d", d.name, d.n)))
		}
	}
	if numEvents > MaxCells/numClasses || numTasks > MaxCells/numClasses {
		return errorc.With(ErrInvalidConfig, errorc.String("", fmt.Sprintf("matrix exceeds %d cells", MaxCells)))
	}
	if cfg.Clock == nil {
		return errorc.With(ErrInvalidConfig, errorc.String("", "clock must not be nil"))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return nil
}

// Option configures an Abacus. Options return an error on invalid input.
type Option func(*config) error

// WithName sets the value of the "name" label on exported metrics.
func WithName(name string) Option {
	return func(cfg *config) error { cfg.Name = name; return nil }
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) error {
		if l == nil {
			l = zap.NewNop()
		}
		cfg.Logger = l
		return nil
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(cfg *config) error {
		if c == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithClock requires a non-nil clock"))
		}
		cfg.Clock = c
		return nil
	}
}

// WithCrumbTableSize pre-sizes the in-flight task table (must be > 0).
func WithCrumbTableSize(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithCrumbTableSize requires n > 0"))
		}
		cfg.CrumbTableSize = n
		return nil
	}
}

// WithStrictStart makes TaskStart fail with ErrInvalidTransition when the cell
// was already started and not yet ended.
func WithStrictStart() Option {
	return func(cfg *config) error { cfg.StrictStart = true; return nil }
}
