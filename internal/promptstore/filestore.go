package promptstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/interfaces"
)

const fileStorePath = "user_prompts.json"

// FileStore persists prompt preferences in a single JSON file. The full
// mapping is read at startup; writes are serialized through the mutex and
// rewrite the whole file, which is fine at the expected scale.
type FileStore struct {
	mu      sync.Mutex
	path    string
	prompts map[string]interfaces.Prompts
	logger  *logrus.Logger
}

// NewFileStore loads the store from disk; a missing file yields an empty
// store, a corrupt one is an error
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		prompts: make(map[string]interfaces.Prompts),
		logger:  config.NewLogger(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read prompt store %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt store %s: %w", path, err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":  path,
		"users": len(s.prompts),
	}).Info("Prompt store loaded")

	return s, nil
}

// Get returns the requester's overrides
func (s *FileStore) Get(userID string) (interfaces.Prompts, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[userID]
	return p, ok, nil
}

// SetPositive replaces the positive override
func (s *FileStore) SetPositive(userID, prompt string) error {
	return s.update(userID, func(p *interfaces.Prompts) { p.Positive = prompt })
}

// SetNegative replaces the negative override
func (s *FileStore) SetNegative(userID, prompt string) error {
	return s.update(userID, func(p *interfaces.Prompts) { p.Negative = prompt })
}

// ClearPositive drops the positive override
func (s *FileStore) ClearPositive(userID string) error {
	return s.update(userID, func(p *interfaces.Prompts) { p.Positive = "" })
}

// ClearNegative drops the negative override
func (s *FileStore) ClearNegative(userID string) error {
	return s.update(userID, func(p *interfaces.Prompts) { p.Negative = "" })
}

func (s *FileStore) update(userID string, mutate func(*interfaces.Prompts)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.prompts[userID]
	mutate(&p)
	if p.Positive == "" && p.Negative == "" {
		delete(s.prompts, userID)
	} else {
		s.prompts[userID] = p
	}

	return s.flush()
}

// flush rewrites the file; caller holds the mutex
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.prompts, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal prompt store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write prompt store %s: %w", s.path, err)
	}
	return nil
}
