package mapper

import (
	"iter"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/raunlo/pgx-flatmapper/rowsource"
	"go.uber.org/zap"
)

// Stream materializes src into a sequence of root entities of type T.
//
// A root is yielded as soon as a row with a different root key arrives, or
// when src is exhausted; rows are never buffered beyond the open root. The
// sequence can be ranged over once and closes src when done. Errors end the
// sequence unless WithContinueOnError is given.
//
//	for org, err := range mapper.Stream[Org](rowsource.FromPgx(rows)) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
func Stream[T any](src rowsource.Source, opts ...Option) iter.Seq2[*T, error] {
	o := newOptions(opts)
	var consumed atomic.Bool
	return func(yield func(*T, error) bool) {
		if consumed.Swap(true) {
			yield(nil, ErrStreamConsumed)
			return
		}
		definition, err := o.definitionFor(reflect.TypeFor[T]())
		if err != nil {
			_ = src.Close()
			yield(nil, err)
			return
		}
		run(src, definition, o, func(root reflect.Value, err error) bool {
			if err != nil {
				return yield(nil, err)
			}
			return yield(root.Interface().(*T), nil)
		})
	}
}

// Collect drains seq. It stops at the first error.
func Collect[T any](seq iter.Seq2[*T, error]) ([]T, error) {
	result := make([]T, 0)
	for entity, err := range seq {
		if err != nil {
			return result, err
		}
		result = append(result, *entity)
	}
	return result, nil
}

func run(src rowsource.Source, definition *Definition, o *options, yield func(reflect.Value, error) bool) {
	entity := definition.Root.String()
	log := o.logger.With(zap.String("entity", entity))
	m := newMaterializer(definition)
	started := time.Now()
	roots, skipped := 0, 0

	log.Debug("materialization pass started", zap.Int("levels", len(definition.Levels)))
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("failed to close row source", zap.Error(err))
		}
		elapsed := time.Since(started)
		o.metrics.ObservePass(entity, elapsed)
		log.Debug("materialization pass finished",
			zap.Int("rows", m.ordinal),
			zap.Int("roots", roots),
			zap.Int("skipped", skipped),
			zap.Duration("elapsed", elapsed))
	}()

	emit := func(n *node) bool {
		roots++
		o.metrics.RootEmitted(entity)
		return yield(m.assemble(n, 0), nil)
	}

	for src.Next() {
		row, err := src.Row()
		if err != nil {
			yield(reflect.Value{}, &RowError{Row: m.ordinal + 1, Entity: definition.Root, Err: err})
			return
		}
		o.metrics.RowConsumed(entity)

		completed, err := m.consume(row)
		if err != nil {
			o.metrics.RowFailed(entity)
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				rowErr = &RowError{Row: m.ordinal, Entity: definition.Root, Err: err}
			}
			if o.onError == nil {
				if completed != nil && !emit(completed) {
					return
				}
				yield(reflect.Value{}, rowErr)
				return
			}
			skipped++
			log.Warn("skipping row",
				zap.Int("row", rowErr.Row),
				zap.String("property", rowErr.Property),
				zap.String("column", rowErr.Column),
				zap.Error(rowErr.Err))
			o.onError(rowErr)
			continue
		}
		if completed != nil && !emit(completed) {
			return
		}
	}
	if err := src.Err(); err != nil {
		yield(reflect.Value{}, errors.Wrap(err, "row source failed"))
		return
	}
	if root := m.finish(); root != nil {
		emit(root)
	}
}
