package storage

import (
	"context"

	"github.com/agentuity/go-catalog/resilience"
)

// Failover is a Provider that routes every call through a dispatcher.
type Failover struct {
	dispatcher *resilience.Dispatcher[Provider]
}

var _ Provider = (*Failover)(nil)

func NewFailover(d *resilience.Dispatcher[Provider]) *Failover {
	return &Failover{dispatcher: d}
}

func (f *Failover) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	return resilience.Call(ctx, f.dispatcher, "put", func(ctx context.Context, p Provider) (Object, error) {
		return p.Put(ctx, key, data, contentType)
	})
}

type blob struct {
	data []byte
	obj  Object
}

func (f *Failover) Get(ctx context.Context, key string) ([]byte, Object, error) {
	b, err := resilience.Call(ctx, f.dispatcher, "get", func(ctx context.Context, p Provider) (blob, error) {
		data, obj, err := p.Get(ctx, key)
		return blob{data: data, obj: obj}, err
	})
	return b.data, b.obj, err
}

func (f *Failover) Delete(ctx context.Context, key string) error {
	return f.dispatcher.Do(ctx, "delete", func(ctx context.Context, p Provider) error {
		return p.Delete(ctx, key)
	})
}

func (f *Failover) List(ctx context.Context, prefix string) ([]Object, error) {
	return resilience.Call(ctx, f.dispatcher, "list", func(ctx context.Context, p Provider) ([]Object, error) {
		return p.List(ctx, prefix)
	})
}
