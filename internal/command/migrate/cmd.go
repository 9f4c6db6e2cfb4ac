package migrate

import (
	"log"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/config"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/featurestore"
)

// Command is the cobra command.
var Command = &cobra.Command{
	Use:   "migrate",
	Short: "Create the offline and online feature store schemas",
	RunE:  run,
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	offline, err := featurestore.OpenOffline(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "offline store")
	}
	defer func() {
		if err := offline.Close(); err != nil {
			log.Printf("close offline store: %v", err)
		}
	}()
	if err := offline.EnsureSchema(ctx); err != nil {
		return errors.Wrap(err, "offline schema")
	}

	online, err := featurestore.OpenOnline(ctx, cfg.PostgresDSN)
	if err != nil {
		return errors.Wrap(err, "online store")
	}
	defer online.Close()
	if err := online.EnsureSchema(ctx); err != nil {
		return errors.Wrap(err, "online schema")
	}
	if err := online.RegisterGroup(ctx, featurestore.DefaultGroup); err != nil {
		return errors.Wrap(err, "register feature group")
	}

	log.Printf("schemas ready, feature group %s v%d registered",
		featurestore.DefaultGroup.Name, featurestore.DefaultGroup.Version)
	return nil
}
