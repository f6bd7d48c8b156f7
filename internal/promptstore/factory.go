package promptstore

import (
	"fmt"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/interfaces"
)

// StoreType prompt store backend type
type StoreType string

const (
	StoreTypeFile  StoreType = "file"  // JSON file on disk
	StoreTypeRedis StoreType = "redis" // Redis hash
)

// Factory prompt store factory
type Factory struct{}

// NewFactory creates factory instance
func NewFactory() *Factory {
	return &Factory{}
}

// CreateStore creates a prompt store based on configuration
func (f *Factory) CreateStore(cfg *config.Config) (interfaces.PromptStore, error) {
	switch StoreType(cfg.PromptStore) {
	case StoreTypeFile:
		return NewFileStore(fileStorePath)
	case StoreTypeRedis:
		return NewRedisStore(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("unsupported prompt store type: %s", cfg.PromptStore)
	}
}

// GetSupportedTypes gets supported prompt store types
func (f *Factory) GetSupportedTypes() []string {
	return []string{
		string(StoreTypeFile),
		string(StoreTypeRedis),
	}
}

// ValidateStoreType validates if prompt store type is supported
func (f *Factory) ValidateStoreType(storeType string) bool {
	for _, t := range f.GetSupportedTypes() {
		if t == storeType {
			return true
		}
	}
	return false
}
