package services

import (
	"context"
	"fmt"
	"time"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/collection"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/metrics"
)

// UserService reads profiles and manages their credentials.
type UserService struct {
	users  docstore.Collection
	hasher auth.Hasher
}

func NewUserService(store docstore.Store, hasher auth.Hasher) *UserService {
	return &UserService{users: store.Collection(models.CollectionUsers), hasher: hasher}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	docs, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	users, errs := docstore.DecodeAll[models.User](docs)
	for _, e := range errs {
		logger.WithCtx(ctx).Warn("users: skipping malformed document", "error", e)
	}
	return users, nil
}

// Profiles lists users without credential fields.
func (s *UserService) Profiles(ctx context.Context) ([]models.Profile, error) {
	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return collection.Map(users, models.User.Profile), nil
}

func (s *UserService) Find(ctx context.Context, id string) (models.User, error) {
	doc, err := s.users.Get(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("users: find %s: %w", id, err)
	}
	var u models.User
	if err := docstore.Decode(doc, &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// VerifyPassword reports whether password matches the stored hash. Unknown
// users never verify.
func (s *UserService) VerifyPassword(ctx context.Context, id, password string) bool {
	u, err := s.Find(ctx, id)
	if err != nil {
		return false
	}
	return s.hasher.Verify(u.PasswordHash, password)
}

// SetPassword stores a new hash and marks the password as chosen.
func (s *UserService) SetPassword(ctx context.Context, id, password string) error {
	defer metrics.ObserveStoreOp(models.CollectionUsers, "update", time.Now())

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("users: hash: %w", err)
	}
	if err := s.users.Update(ctx, id, docstore.Fields{
		"passwordHash":   hash,
		"hasSetPassword": true,
	}); err != nil {
		return fmt.Errorf("users: set password %s: %w", id, err)
	}
	return nil
}

// Create adds a profile with an initial password that must be replaced on
// first login.
func (s *UserService) Create(ctx context.Context, name, description, initialPassword string) (models.User, error) {
	hash, err := s.hasher.Hash(initialPassword)
	if err != nil {
		return models.User{}, fmt.Errorf("users: hash: %w", err)
	}
	u := models.User{Name: name, Description: description, PasswordHash: hash}
	fields, err := docstore.Encode(u)
	if err != nil {
		return models.User{}, err
	}
	id, err := s.users.Add(ctx, fields)
	if err != nil {
		return models.User{}, fmt.Errorf("users: create: %w", err)
	}
	u.ID = id
	return u, nil
}
