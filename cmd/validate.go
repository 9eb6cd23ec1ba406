package cmd

import (
	"fmt"
	"os"

	"github.com/netfluxlab/fluxgen/export"
	"github.com/netfluxlab/fluxgen/topology"
	"github.com/spf13/cobra"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <topology.yaml>",
	Short: "Check a topology without exporting it",
	Long: `Validate runs every export stage short of emission and prints the
full batch of problems it finds, warnings included. The exit code is
non-zero when any fatal problem is present.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := topology.Read(args[0])
		if err != nil {
			return err
		}
		_, res, err := export.Plan(g, export.Options{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, w := range res.Warnings {
			fmt.Println("warning:", w)
		}
		fmt.Printf("%s: ok, %d nodes, %d links, %d warnings\n",
			g.Name, len(g.Nodes), len(g.Links), len(res.Warnings))
		return nil
	},
	GroupID: "topo",
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
