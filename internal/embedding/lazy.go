package embedding

import (
	"context"
	"sync"
)

// Lazy holds the single model handle of the process. The loader runs at most
// once successfully; a failed load is retried on the next call.
type Lazy struct {
	mu    sync.Mutex
	ready bool
	load  func(ctx context.Context) (Embedder, error)
	model Embedder
}

func NewLazy(load func(ctx context.Context) (Embedder, error)) *Lazy {
	return &Lazy{load: load}
}

// Get returns the loaded model, loading it first if needed
func (l *Lazy) Get(ctx context.Context) (Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return l.model, nil
	}
	model, err := l.load(ctx)
	if err != nil {
		return nil, wrapModelError(err)
	}
	l.model = model
	l.ready = true
	return model, nil
}

func (l *Lazy) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	model, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	v, err := model.Embed(ctx, text)
	if err != nil {
		return nil, wrapModelError(err)
	}
	if len(v) == 0 {
		return nil, wrapModelError(errEmptyVector)
	}
	return v, nil
}
