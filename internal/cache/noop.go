package cache

import (
	"context"
	"time"
)

type noopCache struct{}

// NewNoop returns a cache that stores nothing. Every Get misses.
func NewNoop() Cache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) ([]byte, error) {
	return nil, ErrMiss
}

func (noopCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (noopCache) Delete(context.Context, ...string) error {
	return nil
}

func (noopCache) DeletePrefix(context.Context, string) error {
	return nil
}
