package collector

import (
	"context"

	"github.com/jeromwolf/FluxNews/internal/model"
)

// Source produces a batch of articles per poll. Implementations must be
// safe for concurrent Fetch calls and must respect the context.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]*model.Article, error)
}
