// Package memory provides an in-process blob store for local development and tests.
// It is not a production backend: nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/repository"
)

type object struct {
	data        []byte
	contentType string
	meta        map[string]string
	updatedAt   time.Time
}

// Store implements repository.BlobStore in memory.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

// New constructs an empty store.
func New() *Store { return NewWithClock(time.Now) }

// NewWithClock constructs an empty store stamping objects with now().
func NewWithClock(now func() time.Time) *Store {
	return &Store{objects: make(map[string]object), now: now}
}

var _ repository.BlobStore = (*Store)(nil)

// List returns objects under prefix ordered by name.
func (s *Store) List(_ context.Context, prefix string) ([]model.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ObjectInfo, 0)
	for name, o := range s.objects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, model.ObjectInfo{Name: name, UpdatedAt: o.updatedAt, Metadata: maps.Clone(o.meta)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns a copy of the object body.
func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, errs.ErrNotFound)
	}
	return append([]byte(nil), o.data...), nil
}

// Put stores a new object; existing names are never replaced.
func (s *Store) Put(_ context.Context, name string, data []byte, contentType string, meta map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[name]; ok {
		return fmt.Errorf("%s: %w", name, errs.ErrAlreadyExists)
	}
	s.objects[name] = object{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		meta:        maps.Clone(meta),
		updatedAt:   s.now().UTC(),
	}
	return nil
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
