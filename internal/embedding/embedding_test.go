package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidence-rag/internal/config"
	"evidence-rag/internal/models"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashEmbedderDeterministicUnitVectors(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(0)
	assert.Equal(t, 384, e.Dimension())

	a, err := e.Embed(ctx, "A red sedan was seen leaving the scene at 10 PM.")
	require.NoError(t, err)
	b, err := NewHashEmbedder(384).Embed(ctx, "A red sedan was seen leaving the scene at 10 PM.")
	require.NoError(t, err)

	assert.Len(t, a, 384)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(256)

	sedan, err := e.Embed(ctx, "A red sedan was seen leaving the scene")
	require.NoError(t, err)
	query, err := e.Embed(ctx, "red sedan leaving")
	require.NoError(t, err)
	other, err := e.Embed(ctx, "Fingerprints were lifted from the kitchen window")
	require.NoError(t, err)

	assert.Greater(t, dot(sedan, query), dot(other, query))
}

func TestHashEmbedderEmptyTextIsNotZero(t *testing.T) {
	v, err := NewHashEmbedder(64).Embed(context.Background(), "")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(v), 1e-5)
}

func TestHashEmbedderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashEmbedder(8).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	v, err := Normalize([]float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	_, err = Normalize(nil)
	assert.Error(t, err)
	_, err = Normalize([]float32{0, 0})
	assert.Error(t, err)
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

func TestLazyLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	lazy := NewLazy(func(context.Context) (Embedder, error) {
		loads.Add(1)
		return NewHashEmbedder(16), nil
	})
	assert.False(t, lazy.Ready())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lazy.Embed(context.Background(), "question")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, lazy.Ready())
	assert.Equal(t, int32(1), loads.Load())
}

func TestLazyRetriesFailedLoad(t *testing.T) {
	var calls int
	lazy := NewLazy(func(context.Context) (Embedder, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("weights unavailable")
		}
		return NewHashEmbedder(16), nil
	})

	_, err := lazy.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrModel)
	assert.False(t, lazy.Ready())

	v, err := lazy.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, v, 16)
	assert.Equal(t, 2, calls)
}

func TestLazyWrapsInferenceErrors(t *testing.T) {
	lazy := NewLazy(func(context.Context) (Embedder, error) {
		return stubEmbedder{err: errors.New("inference failed")}, nil
	})
	_, err := lazy.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, models.ErrModel)

	empty := NewLazy(func(context.Context) (Embedder, error) {
		return stubEmbedder{}, nil
	})
	_, err = empty.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, models.ErrModel)
}

type fakeEmbedderClient struct{}

func (fakeEmbedderClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 3, 4}
	}
	return out, nil
}

func TestLangchainEmbedderNormalizes(t *testing.T) {
	e, err := NewLangchainEmbedder(fakeEmbedderClient{})
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "What color was the car?")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.6, 0.8}, v, 1e-6)
}

func TestNewUnknownProvider(t *testing.T) {
	lazy := New(&config.LLMConfig{Provider: "word2vec"})
	_, err := lazy.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, models.ErrModel)
}

func TestNewLocalProvider(t *testing.T) {
	lazy := New(&config.LLMConfig{Provider: config.ProviderLocal, Dimension: 32})
	v, err := lazy.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, v, 32)
}

func TestHashEmbedderKeepsNoPerTokenState(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(32)

	before, err := e.Embed(ctx, "red sedan")
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		_, err := e.Embed(ctx, fmt.Sprintf("question %d token%d", i, i))
		require.NoError(t, err)
	}
	after, err := e.Embed(ctx, "red sedan")
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, HashEmbedder{dim: 32}, *e)
}
