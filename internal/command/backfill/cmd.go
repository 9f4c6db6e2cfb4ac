package backfill

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/command"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/config"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/featurestore"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

// Command is the cobra command.
var Command = &cobra.Command{
	Use:   "backfill",
	Short: "Load a historical month range into the offline store as-is",
	RunE:  run,
}

type commandConfig struct {
	from         string
	to           string
	featureGroup string
	version      int
}

var flags = new(commandConfig)

func initFlags() {
	Command.Flags().StringVar(&flags.from, "from", "", "First month to load, YYYY-MM (required)")
	Command.Flags().StringVar(&flags.to, "to", "", "Last month to load, YYYY-MM, inclusive (required)")
	Command.Flags().StringVar(&flags.featureGroup, "feature-group", featurestore.DefaultGroup.Name, "Feature group to backfill")
	Command.Flags().IntVar(&flags.version, "version", featurestore.DefaultGroup.Version, "Feature group version")
}

func init() {
	initFlags()
}

func monthRange() (window.Month, window.Month, error) {
	var from, to window.Month
	if flags.from == "" || flags.to == "" {
		return from, to, errors.New("--from and --to are required")
	}
	start, err := time.Parse("2006-01", flags.from)
	if err != nil {
		return from, to, errors.Wrap(err, "parse --from")
	}
	end, err := time.Parse("2006-01", flags.to)
	if err != nil {
		return from, to, errors.Wrap(err, "parse --to")
	}
	from, to = window.MonthOf(start), window.MonthOf(end)
	if to.Before(from) {
		return from, to, errors.Errorf("--to %s is before --from %s", flags.to, flags.from)
	}
	return from, to, nil
}

func run(cmd *cobra.Command, _ []string) error {
	from, to, err := monthRange()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
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

	// A run per month keeps the working set and the registry records small.
	for m := from; !to.Before(m); m = m.Next() {
		w, err := window.New(m.Start(), m.Next().Start())
		if err != nil {
			return errors.Wrapf(err, "window for %s", m.Key())
		}
		if _, err := p.Backfill(ctx, w); err != nil {
			return errors.Wrapf(err, "backfill %s", m.Key())
		}
	}
	return nil
}
