// Hourly taxi demand feature pipeline: simulate production traffic from
// year-old TLC data, aggregate per-location ride counts, materialize to the feature store.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/command/backfill"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/command/materialize"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/command/migrate"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/command/runs"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmsgprefix)
	log.SetOutput(os.Stdout)

	root := &cobra.Command{
		Use:   "featurepipe",
		Short: "Materialize hourly ride demand features from NYC TLC trip data",
	}
	root.AddCommand(migrate.Command, materialize.Command, backfill.Command, runs.Command)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
