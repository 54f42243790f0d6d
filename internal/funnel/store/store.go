// Package store is the durable answer store: every funnel answer lives under a
// well-known key scoped to one browser session, serialized as JSON.
package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
)

// Store reads and writes the answers of a single session.
type Store struct {
	backend   Backend
	namespace string
	logger    logger.Logger
}

func New(backend Backend, namespace string, log logger.Logger) *Store {
	return &Store{
		backend:   backend,
		namespace: namespace,
		logger:    log.WithFields(map[string]interface{}{"session": namespace}),
	}
}

func (s *Store) Namespace() string {
	return s.namespace
}

// Get decodes the value under key into dst. A missing key and a value that
// fails to decode are both reported as absent; only backend failures error.
func (s *Store) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, found, err := s.backend.Load(ctx, s.namespace, key)
	if err != nil {
		return false, errors.NewStoreUnavailableError(err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("Discarding unreadable answer", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return false, nil
	}
	return true, nil
}

// Set replaces the value under key.
func (s *Store) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.NewValidationFailedError(key, err.Error())
	}
	if err := s.backend.Save(ctx, s.namespace, key, raw); err != nil {
		return errors.NewStoreUnavailableError(err)
	}
	return nil
}

// Merge shallow-merges the top-level fields of partial into the object stored
// under key. A missing or non-object current value is treated as {}.
func (s *Store) Merge(ctx context.Context, key string, partial interface{}) error {
	patch, err := toObject(partial)
	if err != nil {
		return errors.NewValidationFailedError(key, err.Error())
	}

	err = s.backend.Update(ctx, s.namespace, key, func(current []byte, found bool) ([]byte, error) {
		merged := map[string]interface{}{}
		if found {
			if err := json.Unmarshal(current, &merged); err != nil || merged == nil {
				s.logger.Warn("Replacing unreadable answer during merge", map[string]interface{}{"key": key})
				merged = map[string]interface{}{}
			}
		}
		for k, v := range patch {
			merged[k] = v
		}
		return json.Marshal(merged)
	})
	if err != nil {
		return errors.NewStoreUnavailableError(err)
	}
	return nil
}

// SetIfAbsent writes value only when key holds nothing, reporting whether it wrote.
func (s *Store) SetIfAbsent(ctx context.Context, key string, value interface{}) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, errors.NewValidationFailedError(key, err.Error())
	}

	written := false
	err = s.backend.Update(ctx, s.namespace, key, func(current []byte, found bool) ([]byte, error) {
		written = !found
		if found {
			return current, nil
		}
		return raw, nil
	})
	if err != nil {
		return false, errors.NewStoreUnavailableError(err)
	}
	return written, nil
}

// Delete removes the given keys. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := s.backend.Delete(ctx, s.namespace, keys...); err != nil {
		return errors.NewStoreUnavailableError(err)
	}
	return nil
}

// Clear removes every answer of the session.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.DeleteAll(ctx, s.namespace); err != nil {
		return errors.NewStoreUnavailableError(err)
	}
	s.logger.Info("Session answers cleared", nil)
	return nil
}

func toObject(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, fmt.Errorf("merge value must be a JSON object")
	}
	return m, nil
}
