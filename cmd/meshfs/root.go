package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/meshfs/meshfs/fs"
)

var (
	configPath string
	logLevel   string
)

var rootCommand = &cobra.Command{
	Use:   "meshfs",
	Short: "Cluster composition node for a partitioned remote filesystem",
	Long: `
meshfs runs a node that fans files out across a set of partition
backends on write and fans reads back in from the most-preferred replica
holding the file, failing over to the next one mid-stream, tracking
partition liveness so a dead backend degrades the
cluster instead of hanging calls against it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch logLevel {
		case "error":
			fs.SetLogLevel(fs.LogLevelError)
		case "info":
			fs.SetLogLevel(fs.LogLevelInfo)
		case "debug":
			fs.SetLogLevel(fs.LogLevelDebug)
		}
		return nil
	},
}

func init() {
	flags := rootCommand.PersistentFlags()
	flags.StringVar(&configPath, "config", defaultConfigPath(), "path to the cluster config file")
	flags.StringVar(&logLevel, "log-level", "info", "log level: error, info, or debug")
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "meshfs.conf"
	}
	return dir + "/meshfs/meshfs.conf"
}
