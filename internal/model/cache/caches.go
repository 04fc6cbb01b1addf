package cache

import (
	"sync"

	"github.com/meidash/backend/internal/model"
	"github.com/meidash/backend/internal/pkg/cache"
)

var (
	// CombinedDataset memoizes the fetched-and-combined indicator dataset.
	// The query parameters behind it are fixed at configuration time, so a
	// single key suffices.
	CombinedDataset *cache.Singular[model.CombinedDataset]

	once sync.Once
)

func Initialize() {
	once.Do(func() {
		CombinedDataset = cache.NewSingular[model.CombinedDataset]("combinedDataset")
	})
}

// Flush drops every cached entry. Exposed over the admin endpoint as the
// explicit invalidation path.
func Flush() {
	if CombinedDataset != nil {
		CombinedDataset.Delete()
	}
}
