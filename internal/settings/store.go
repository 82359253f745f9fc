package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/storage"
	"github.com/sirupsen/logrus"
)

// Key is the storage key of the settings record
const Key = "settings.json"

// Listener is called after the settings record changes
type Listener func(ctx context.Context, previous, current models.Settings)

// Store holds the process-wide settings record backed by key-value storage
type Store struct {
	storage   storage.StorageInterface
	mu        sync.RWMutex
	current   models.Settings
	listeners []Listener
}

// NewStore creates a store holding defaults until Load is called
func NewStore(st storage.StorageInterface) *Store {
	return &Store{storage: st, current: Defaults()}
}

// OnChange registers a listener for Update and Refresh
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Load reads the persisted record, creating it from seed (or defaults) on first run
func (s *Store) Load(ctx context.Context, seed *models.Settings) error {
	loaded, err := s.read(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		initial := Defaults()
		if seed != nil {
			initial = *seed
		}
		initial = Sanitize(initial)
		if err := s.write(ctx, initial); err != nil {
			return err
		}
		logrus.Info("Created default settings")
		loaded = initial
	} else if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the current settings
func (s *Store) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.current)
}

// Update sanitizes, persists and publishes a new settings record
func (s *Store) Update(ctx context.Context, next models.Settings) (models.Settings, error) {
	next = Sanitize(next)
	if err := s.write(ctx, next); err != nil {
		return models.Settings{}, err
	}

	s.mu.Lock()
	previous := s.current
	s.current = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(ctx, clone(previous), clone(next))
	}
	return clone(next), nil
}

// Refresh re-reads storage and notifies listeners if another process changed it
func (s *Store) Refresh(ctx context.Context) (bool, error) {
	loaded, err := s.read(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	previous := s.current
	if reflect.DeepEqual(previous, loaded) {
		s.mu.Unlock()
		return false, nil
	}
	s.current = loaded
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	logrus.Info("Settings changed in storage, reloading")
	for _, l := range listeners {
		l(ctx, clone(previous), clone(loaded))
	}
	return true, nil
}

func (s *Store) read(ctx context.Context) (models.Settings, error) {
	data, err := s.storage.Retrieve(ctx, Key)
	if err != nil {
		return models.Settings{}, err
	}
	var out models.Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return models.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return Sanitize(out), nil
}

func (s *Store) write(ctx context.Context, v models.Settings) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.storage.Store(ctx, Key, data); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}

func clone(v models.Settings) models.Settings {
	v.ContentTypes = slices.Clone(v.ContentTypes)
	v.ExcludedIDs = slices.Clone(v.ExcludedIDs)
	v.TypeThresholds = maps.Clone(v.TypeThresholds)
	return v
}
