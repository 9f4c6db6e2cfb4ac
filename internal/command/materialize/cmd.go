package materialize

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/command"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/config"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/featurestore"
)

// Command is the cobra command.
var Command = &cobra.Command{
	Use:   "materialize",
	Short: "Run one feature materialization over the trailing window",
	RunE:  run,
}

type commandConfig struct {
	featureGroup string
	version      int
	now          string
}

var flags = new(commandConfig)

func initFlags() {
	Command.Flags().StringVar(&flags.featureGroup, "feature-group", featurestore.DefaultGroup.Name, "Feature group to materialize")
	Command.Flags().IntVar(&flags.version, "version", featurestore.DefaultGroup.Version, "Feature group version")
	Command.Flags().StringVar(&flags.now, "now", "", "Reference time, RFC3339 (default wall clock)")
}

func init() {
	initFlags()
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if flags.now != "" {
		now, err = time.Parse(time.RFC3339, flags.now)
		if err != nil {
			return errors.Wrap(err, "parse --now")
		}
	}

	ctx := cmd.Context()
	p, cleanup, err := command.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if flags.featureGroup != p.Group.Name || flags.version != p.Group.Version {
		p.Group = featurestore.FeatureGroup{Name: flags.featureGroup, Version: flags.version}
	}

	_, err = p.Materialize(ctx, now)
	return err
}
