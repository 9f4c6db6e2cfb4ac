// Package command assembles the pipeline from configuration for the
// featurepipe subcommands.
package command

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/archive"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/catalog"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/config"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/featurestore"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/notify"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/pipeline"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/tlc"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/tripgen"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/zones"
)

// tlcZoneCount is how many pickup locations the TLC zone map defines.
const tlcZoneCount = 263

// Build opens the stores and side channels the configuration enables and
// returns a ready pipeline plus a cleanup that releases every connection.
func Build(ctx context.Context, cfg config.Config) (*pipeline.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	offline, err := featurestore.OpenOffline(ctx, cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "offline store")
	}
	closers = append(closers, func() {
		if err := offline.Close(); err != nil {
			log.Printf("close offline store: %v", err)
		}
	})

	online, err := featurestore.OpenOnline(ctx, cfg.PostgresDSN)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "online store")
	}
	closers = append(closers, online.Close)

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "raw file catalog")
	}
	closers = append(closers, func() {
		if err := cat.Close(); err != nil {
			log.Printf("close catalog: %v", err)
		}
	})

	registry, err := loadZones(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	p := &pipeline.Pipeline{
		Cfg:      cfg,
		Group:    featurestore.DefaultGroup,
		Offline:  offline,
		Online:   online,
		Registry: registry,
		Catalog:  cat,
	}

	if cfg.SyntheticEnabled() {
		p.Loader = &tripgen.Loader{
			Locations:   syntheticLocations(registry),
			RidesPerDay: cfg.SyntheticRidesPerDay,
			Seed:        cfg.SyntheticSeed,
		}
	} else {
		p.Loader = &tlc.Loader{
			Fetcher: &tlc.Fetcher{
				BaseURL: cfg.BaseURL,
				DataDir: cfg.DataDir,
				Catalog: cat,
			},
			Registry: registry,
		}
	}

	if cfg.ArchiveEnabled() {
		uploader, err := archive.New(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "raw file archive")
		}
		p.Archiver = uploader
	}

	if cfg.NotifyEnabled() {
		publisher := notify.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				log.Printf("close run publisher: %v", err)
			}
		})
		p.Notifier = publisher
	}

	return p, cleanup, nil
}

func loadZones(cfg config.Config) (*zones.Registry, error) {
	if cfg.ZoneLookupPath == "" {
		return nil, nil
	}
	registry, err := zones.LoadLookup(cfg.ZoneLookupPath)
	if err != nil {
		return nil, errors.Wrap(err, "zone lookup")
	}
	if cfg.ZoneGeometryPath != "" {
		if err := registry.LoadGeometry(cfg.ZoneGeometryPath); err != nil {
			return nil, errors.Wrap(err, "zone geometry")
		}
	}
	return registry, nil
}

func syntheticLocations(registry *zones.Registry) []int {
	if registry != nil && registry.Count() > 0 {
		return registry.IDs()
	}
	ids := make([]int, tlcZoneCount)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}
