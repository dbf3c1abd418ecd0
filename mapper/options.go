package mapper

import (
	"reflect"

	"github.com/pkg/errors"
	"github.com/raunlo/pgx-flatmapper/logger"
	"github.com/raunlo/pgx-flatmapper/metrics"
	"go.uber.org/zap"
)

type options struct {
	logger     *zap.Logger
	metrics    *metrics.Collector
	onError    func(*RowError)
	definition *Definition
}

// Option configures a materialization pass.
type Option func(*options)

// WithLogger sets the logger for pass diagnostics. Defaults to logger.L().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.logger = l
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithContinueOnError skips rows that fail to materialize instead of aborting
// the pass. fn, when not nil, receives every skipped row's error.
func WithContinueOnError(fn func(*RowError)) Option {
	return func(o *options) {
		if fn == nil {
			fn = func(*RowError) {}
		}
		o.onError = fn
	}
}

// WithDefinition maps with d instead of the definition read from struct tags.
func WithDefinition(d *Definition) Option {
	return func(o *options) { o.definition = d }
}

func newOptions(opts []Option) *options {
	o := &options{logger: logger.L()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) definitionFor(entityType reflect.Type) (*Definition, error) {
	if o.definition == nil {
		return DefinitionFor(entityType)
	}
	if o.definition.Root != entityType {
		return nil, errors.Errorf("definition maps %s, not %s", o.definition.Root, entityType)
	}
	return o.definition, nil
}
