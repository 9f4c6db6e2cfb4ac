package runs

import (
	"fmt"
	"log"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/config"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/featurestore"
)

// Command is the cobra command.
var Command = &cobra.Command{
	Use:   "runs",
	Short: "List recent materializations for a feature group",
	RunE:  run,
}

type commandConfig struct {
	featureGroup string
	version      int
	limit        int
	serving      bool
}

var flags = new(commandConfig)

func initFlags() {
	Command.Flags().StringVar(&flags.featureGroup, "feature-group", featurestore.DefaultGroup.Name, "Feature group to inspect")
	Command.Flags().IntVar(&flags.version, "version", featurestore.DefaultGroup.Version, "Feature group version")
	Command.Flags().IntVar(&flags.limit, "limit", 20, "How many runs to show")
	Command.Flags().BoolVar(&flags.serving, "serving", false, "Also print the per-location latest demand")
}

func init() {
	initFlags()
}

const hourStamp = "2006-01-02 15:04"

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	online, err := featurestore.OpenOnline(ctx, cfg.PostgresDSN)
	if err != nil {
		return errors.Wrap(err, "online store")
	}
	defer online.Close()

	fg := featurestore.FeatureGroup{Name: flags.featureGroup, Version: flags.version}
	materializations, err := online.Materializations(ctx, fg, flags.limit)
	if err != nil {
		return err
	}
	if len(materializations) == 0 {
		log.Printf("no runs recorded for %s v%d", fg.Name, fg.Version)
		return nil
	}

	fmt.Printf("%-36s  %-33s  %9s  %-9s  %s\n", "RUN", "WINDOW", "ROWS", "STATUS", "ERROR")
	for _, m := range materializations {
		fmt.Printf("%-36s  %s .. %s  %9d  %-9s  %s\n",
			m.RunID,
			m.Window.From.Format(hourStamp), m.Window.To.Format(hourStamp),
			m.Rows, m.Status, m.Error)
	}

	if !flags.serving {
		return nil
	}

	demand, err := online.LatestDemand(ctx, fg)
	if err != nil {
		return err
	}
	fmt.Printf("\n%-8s  %-16s  %s\n", "LOCATION", "HOUR", "RIDES")
	for _, p := range demand {
		fmt.Printf("%-8d  %-16s  %d\n", p.LocationID, p.PickupHour.Format(hourStamp), p.Rides)
	}
	return nil
}
