package status

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/cache"
)

type Service interface {
	// GetOrCreate returns the named status, creating it with its default description if needed.
	GetOrCreate(ctx context.Context, name string) (*Status, error)
	FindByName(ctx context.Context, name string) (*Status, error)
	GetByID(ctx context.Context, id string) (*Status, error)
	List(ctx context.Context, filter Filter) ([]*Status, int, error)
	Create(ctx context.Context, req CreateRequest) (*Status, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Status, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	repo   Repository
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(repo Repository, c *cache.Cache, ttl time.Duration, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, cache: c, ttl: ttl, logger: logger}
}

func idKey(id string) string     { return cache.Key(cache.EntityStatus, id) }
func nameKey(name string) string { return cache.Key(cache.EntityStatus, "name:"+name) }

func (s *service) GetOrCreate(ctx context.Context, name string) (*Status, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return cache.GetOrCreate(ctx, s.cache, nameKey(name), s.ttl, func(ctx context.Context) (*Status, error) {
		return s.repo.GetOrCreate(ctx, name, descriptions[name])
	})
}

func (s *service) FindByName(ctx context.Context, name string) (*Status, error) {
	return cache.GetOrCreate(ctx, s.cache, nameKey(name), s.ttl, func(ctx context.Context) (*Status, error) {
		return s.repo.GetByName(ctx, name)
	})
}

func (s *service) GetByID(ctx context.Context, id string) (*Status, error) {
	return cache.GetOrCreate(ctx, s.cache, idKey(id), s.ttl, func(ctx context.Context) (*Status, error) {
		return s.repo.GetByID(ctx, id)
	})
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Status, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Status, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	st := &Status{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	s.invalidate(ctx, st.ID, st.Name)
	return st, nil
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Status, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldName := st.Name
	builtIn := IsKnown(oldName)

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		if builtIn && name != oldName {
			return nil, ErrBuiltInStatus
		}
		st.Name = name
	}
	if req.Description != nil {
		st.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsActive != nil {
		// The transition table references lifecycle states by name.
		if builtIn && !*req.IsActive {
			return nil, ErrBuiltInStatus
		}
		st.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}
	s.invalidate(ctx, st.ID, oldName, st.Name)
	return st, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if IsKnown(st.Name) {
		return ErrBuiltInStatus
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, st.ID, st.Name)
	return nil
}

func (s *service) invalidate(ctx context.Context, id string, names ...string) {
	keys := []string{idKey(id)}
	for _, n := range names {
		keys = append(keys, nameKey(n))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		// The write already committed; a stale entry expires with its TTL.
		s.logger.Error("status cache invalidation failed", zap.String("status_id", id), zap.Error(err))
	}
}
