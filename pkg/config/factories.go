package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/baserepo/pkg/audit"
	"github.com/marmos91/baserepo/pkg/content"
	"github.com/marmos91/baserepo/pkg/content/versioning"
	versioningnone "github.com/marmos91/baserepo/pkg/content/versioning/none"
	versionings3 "github.com/marmos91/baserepo/pkg/content/versioning/s3"
	"github.com/marmos91/baserepo/pkg/facade"
	"github.com/marmos91/baserepo/pkg/store"
	storebadger "github.com/marmos91/baserepo/pkg/store/badger"
	storememory "github.com/marmos91/baserepo/pkg/store/memory"
)

// NewStore builds the metadata store selected by the configuration.
func NewStore(cfg *Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "memory":
		return storememory.NewMemoryStore(), nil

	case "badger":
		var badgerCfg storebadger.Config
		if err := mapstructure.Decode(cfg.Store.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger store configuration: %w", err)
		}
		return storebadger.NewBadgerStore(badgerCfg)

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// NewVersioning builds the physical content backend selected by the
// configuration and runs its Configure step.
func NewVersioning(ctx context.Context, cfg *Config) (versioning.Service, error) {
	var service versioning.Service

	switch cfg.Versioning.Type {
	case "none":
		var noneCfg versioningnone.Config
		if err := mapstructure.Decode(cfg.Versioning.None, &noneCfg); err != nil {
			return nil, fmt.Errorf("invalid filesystem versioning configuration: %w", err)
		}
		fs, err := versioningnone.NewFSService(noneCfg)
		if err != nil {
			return nil, err
		}
		service = fs

	case "s3":
		var s3Cfg versionings3.Config
		if err := mapstructure.Decode(cfg.Versioning.S3, &s3Cfg); err != nil {
			return nil, fmt.Errorf("invalid s3 versioning configuration: %w", err)
		}
		s3Service, err := versionings3.NewS3Service(ctx, s3Cfg)
		if err != nil {
			return nil, err
		}
		service = s3Service

	default:
		return nil, fmt.Errorf("unknown versioning type %q", cfg.Versioning.Type)
	}

	if err := service.Configure(ctx); err != nil {
		return nil, err
	}

	return service, nil
}

// NewRepository wires the full facade from the configuration: store,
// versioning backend, content service and audit log.
//
// When the metadata store is badger-backed the audit log shares its
// database, so one embedded instance carries both concerns; the memory
// store pairs with the in-memory audit log.
func NewRepository(ctx context.Context, cfg *Config) (*facade.Repository, store.Store, error) {
	s, err := NewStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	v, err := NewVersioning(ctx, cfg)
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}

	var auditService audit.Service
	if badgerStore, ok := s.(*storebadger.BadgerStore); ok {
		auditService = audit.NewBadgerService(badgerStore.DB())
	} else {
		auditService = audit.NewMemoryService()
	}

	return facade.New(s, auditService, content.NewService(s, v)), s, nil
}
