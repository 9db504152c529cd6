package source

import (
	"context"

	"github.com/agentuity/go-catalog/catalog"
)

// Func adapts a plain function to catalog.Source.
type Func func(ctx context.Context, d catalog.Descriptor) ([]byte, error)

func (f Func) Fetch(ctx context.Context, d catalog.Descriptor) ([]byte, error) {
	return f(ctx, d)
}
