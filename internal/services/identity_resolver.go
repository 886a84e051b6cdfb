package services

import (
	"context"
	"errors"
	"strings"

	"medical-record-versioning/internal/apperrors"
	"medical-record-versioning/internal/domain/entities"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IdentityResolverContract interface {
	// Resolve maps an opaque actor token to an Actor. Credentials are
	// verified upstream; the token carries the actor id.
	Resolve(ctx context.Context, token string) (entities.Actor, error)
}

type IdentityResolverImpl struct {
	directory PatientDirectoryContract
	admins    map[uuid.UUID]struct{}
	logger    *zap.Logger
}

func NewIdentityResolver(directory PatientDirectoryContract, adminIDs []string, logger *zap.Logger) (IdentityResolverContract, error) {
	admins := make(map[uuid.UUID]struct{}, len(adminIDs))
	for _, raw := range adminIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, apperrors.Validationf("invalid admin id %q", raw)
		}
		admins[id] = struct{}{}
	}
	return &IdentityResolverImpl{
		directory: directory,
		admins:    admins,
		logger:    logger.With(zap.String("service", "identity_resolver")),
	}, nil
}

func (r *IdentityResolverImpl) Resolve(ctx context.Context, token string) (entities.Actor, error) {
	id, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return entities.Actor{}, apperrors.Unauthenticatedf("malformed actor token")
	}

	if _, ok := r.admins[id]; ok {
		return entities.Actor{ID: id, Role: entities.RoleAdmin}, nil
	}

	if _, err := r.directory.GetDoctor(ctx, id); err == nil {
		return entities.Actor{ID: id, Role: entities.RoleDoctor}, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return entities.Actor{}, err
	}

	if _, err := r.directory.Get(ctx, id); err == nil {
		return entities.Actor{ID: id, Role: entities.RolePatient}, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return entities.Actor{}, err
	}

	r.logger.Warn("Unknown actor presented a token", zap.String("actor_id", id.String()))
	return entities.Actor{}, apperrors.Unauthenticatedf("unknown actor")
}
