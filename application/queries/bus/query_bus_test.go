package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countQuery struct{ N int }

func (q countQuery) Validate() error {
	if q.N < 0 {
		return errors.New("n must not be negative")
	}
	return nil
}

type timing struct{ names []string }

func (t *timing) ObserveQuery(name string, _ error, _ time.Duration) {
	t.names = append(t.names, name)
}

func TestQueryBus_Ask(t *testing.T) {
	rec := &timing{}
	b := NewQueryBus(MetricsMiddleware(rec))
	require.NoError(t, b.Register(countQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return q.(countQuery).N * 2, nil
	})))

	result, err := b.Ask(context.Background(), countQuery{N: 21})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, []string{"countQuery"}, rec.names)
}

func TestQueryBus_Errors(t *testing.T) {
	b := NewQueryBus()

	_, err := b.Ask(context.Background(), countQuery{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	_, err = b.Ask(context.Background(), countQuery{N: -1})
	assert.ErrorContains(t, err, "query validation failed")
}
