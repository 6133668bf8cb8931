package main

import (
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "nmeaflow",
		Short:        "NMEA 0183 ingestion engine",
		Long:         "nmeaflow reads NMEA 0183 sentences from TCP, UDP, serial or a capture file, validates and decodes them, and keeps a current view of the vessel's instruments.",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newCheckCommand(), newSimCommand())
	return root
}
