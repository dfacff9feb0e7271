package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand"
	"regexp"
	"strings"
)

const (
	defaultDimension = 384
	clsToken         = "[CLS]"
	sepToken         = "[SEP]"
)

var (
	tokenPattern   = regexp.MustCompile(`[\p{L}\p{N}]+`)
	errEmptyVector = errors.New("model returned an empty vector")
)

// HashEmbedder is a small in-process model: every token has a fixed
// pseudo-random vector seeded from its hash, and a text is the normalized
// mean of its token vectors, framed by the usual boundary tokens.
// Token vectors are regenerated on every call; nothing is kept between calls.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultDimension
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Dimension() int { return e.dim }

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := append([]string{clsToken}, tokenPattern.FindAllString(strings.ToLower(text), -1)...)
	tokens = append(tokens, sepToken)

	pooled := make([]float32, e.dim)
	for _, tok := range tokens {
		for i, x := range e.tokenVector(tok) {
			pooled[i] += x
		}
	}
	n := float32(len(tokens))
	for i := range pooled {
		pooled[i] /= n
	}
	return Normalize(pooled)
}

func (e *HashEmbedder) tokenVector(tok string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(tok))
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make([]float32, e.dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}
