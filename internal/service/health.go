package service

import (
	"github.com/meidash/backend/internal/model/cache"
	"github.com/meidash/backend/internal/pkg/bininfo"
)

type Health struct{}

func NewHealth() *Health {
	return &Health{}
}

type HealthStatus struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	DatasetCached bool   `json:"datasetCached"`
}

func (s *Health) Status() HealthStatus {
	cached := false
	if cache.CombinedDataset != nil {
		_, err := cache.CombinedDataset.Get()
		cached = err == nil
	}
	return HealthStatus{
		Status:        "ok",
		Version:       bininfo.Version,
		DatasetCached: cached,
	}
}
