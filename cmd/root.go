package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	logPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fluxgen",
	Short: "NetFlux topology exporter CLI",
	Long: `Fluxgen turns a saved 5G/WiFi topology into runnable deployments.
It validates the graph, plans subnets and addresses for every UE group, and
emits either a Mininet-WiFi/Containernet script or a Docker Compose bundle
for the Open5GS core.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose, logPath)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "gen",
		Title: "Generation Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "topo",
		Title: "Topology Commands",
	})
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Append logs to this file as well")
}
