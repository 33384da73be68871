package devserver

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/volxolabs/walink/internal/errors"
	"github.com/volxolabs/walink/internal/model"
)

// InstanceStore holds managed instances in memory. The devserver keeps
// no state across restarts on purpose.
type InstanceStore struct {
	mu   sync.RWMutex
	byID map[string]*model.Instance
}

func NewInstanceStore() *InstanceStore {
	return &InstanceStore{byID: make(map[string]*model.Instance)}
}

func (s *InstanceStore) List() []model.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instances := make([]model.Instance, 0, len(s.byID))
	for _, instance := range s.byID {
		instances = append(instances, *instance)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].CreatedAt.Before(instances[j].CreatedAt)
	})
	return instances
}

func (s *InstanceStore) Get(id string) (*model.Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instance, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	out := *instance
	return &out, true
}

func (s *InstanceStore) Create(name string) (*model.Instance, error) {
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.Name == name {
			return nil, apperrors.AlreadyExists("Instance")
		}
	}

	instance := &model.Instance{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    model.InstanceStatusDisconnected,
		CreatedAt: time.Now().UTC(),
	}
	s.byID[instance.ID] = instance

	out := *instance
	return &out, nil
}

func (s *InstanceStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return apperrors.NotFound("Instance")
	}
	delete(s.byID, id)
	return nil
}

// SetStatus updates connection status and, when linking completes, the
// linked phone number.
func (s *InstanceStore) SetStatus(id string, status model.InstanceStatus, phoneNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, ok := s.byID[id]
	if !ok {
		return
	}
	instance.Status = status
	if phoneNumber != "" {
		instance.PhoneNumber = phoneNumber
		now := time.Now().UTC()
		instance.LinkedAt = &now
	}
	if status == model.InstanceStatusDisconnected {
		instance.PhoneNumber = ""
		instance.LinkedAt = nil
	}
}
