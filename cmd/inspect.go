package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/netfluxlab/fluxgen/export"
	"github.com/netfluxlab/fluxgen/topology"
	"github.com/spf13/cobra"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <topology.yaml>",
	Short: "Show the address plan and emission order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := topology.Read(args[0])
		if err != nil {
			return err
		}
		_, res, err := export.Plan(g, export.Options{})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "topology %s\n\n", g.Name)
		if len(res.Allocation.Groups) > 0 {
			tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "APN\tSUBNET\tGATEWAY\tUES")
			for _, grp := range res.Allocation.Groups {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", grp.APN, grp.Subnet, grp.Gateway, len(grp.UEs))
			}
			tw.Flush()
			fmt.Fprintln(out)

			tw = tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UE\tADDRESS\tGROUP")
			for _, grp := range res.Allocation.Groups {
				for _, ue := range grp.UEs {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", ue, res.Allocation.UEAddrs[ue], grp.APN)
				}
			}
			tw.Flush()
			fmt.Fprintln(out)
		}

		fmt.Fprintln(out, "emission order:")
		for i, name := range res.Order {
			fmt.Fprintf(out, "  %2d. %s\n", i+1, name)
		}
		for _, w := range res.Warnings {
			fmt.Fprintln(out, "warning:", w)
		}
		return nil
	},
	GroupID: "topo",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
