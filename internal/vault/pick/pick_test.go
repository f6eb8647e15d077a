package pick

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestFirstSkipsUndefined(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	v, ok := First(Float(nil), Float(&nan), Float(&inf), Float(f(0.05)), Float(f(0.07)))
	assert.True(t, ok)
	assert.Equal(t, 0.05, v)
}

func TestZeroIsDefined(t *testing.T) {
	assert.Equal(t, 0.0, Or(1.0, Float(f(0)), Float(f(0.3))))
}

func TestOrFallsBack(t *testing.T) {
	assert.Equal(t, 0.0, Or(0.0, Float(nil), Number(math.NaN())))
	assert.Equal(t, "Volatile", Or("Volatile", String(""), String("  ")))
	assert.Equal(t, "Curve", Or("Volatile", String(" Curve ")))
}

func TestLazyIsNotEvaluatedAfterHit(t *testing.T) {
	called := false
	v := Or(0, Positive(6), Lazy(func() (int, bool) {
		called = true
		return 18, true
	}))

	assert.Equal(t, 6, v)
	assert.False(t, called)
}

func TestPtrAndNilSources(t *testing.T) {
	var missing *int64
	value := int64(2500)

	assert.Equal(t, int64(2500), Or(0, nil, Int64(missing), Int64(&value)))
}
