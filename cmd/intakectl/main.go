package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"intake.app/console/internal/app"
	"intake.app/console/internal/config"
)

var verbose bool

func main() {
	var root = &cobra.Command{
		Use:          "intakectl",
		Short:        "Run intake interviews and review summaries from a terminal",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print service logs to stderr")

	root.AddCommand(interviewCMD(), sessionsCMD(), transcriptCMD(), reviewCMD(), tagCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// open loads configuration and wires the console. Service logs are
// discarded unless --verbose is set.
func open(ctx context.Context) (*app.App, error) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if !verbose {
		log.SetOutput(io.Discard)
	}
	config.LoadConfig()
	return app.New(ctx, config.AppConfig)
}
