package cmd

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/netfluxlab/fluxgen/export"
	"github.com/netfluxlab/fluxgen/topology"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	exportOutput   string
	exportTarget   string
	exportManifest string
	exportBits     int
	exportPool     string
	exportOptsFile string
)

// exportFileOpts is the optional options-file form of the export flags, for
// topologies that ship with a pinned export configuration.
type exportFileOpts struct {
	Output     string `yaml:"output"`
	Target     string `yaml:"target"`
	Manifest   string `yaml:"manifest"`
	SubnetBits int    `yaml:"subnet_bits"`
	Pool       string `yaml:"pool"`
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <topology.yaml>",
	Short: "Export a topology to a deployment",
	Long: `Export validates the topology, plans subnets for every UE group and
writes the chosen deployment format. The mininet target produces a single
runnable Python script; the compose target produces a directory with
docker-compose.yaml and per-service Open5GS configs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := topology.Read(args[0])
		if err != nil {
			return err
		}
		if exportOptsFile != "" {
			file, err := os.ReadFile(exportOptsFile)
			if err != nil {
				return err
			}
			var fo exportFileOpts
			if err = yaml.Unmarshal(file, &fo); err != nil {
				return fmt.Errorf("invalid options file %s: %w", exportOptsFile, err)
			}
			// flags left at their defaults yield to the file
			if !cmd.Flags().Changed("output") && fo.Output != "" {
				exportOutput = fo.Output
			}
			if !cmd.Flags().Changed("target") && fo.Target != "" {
				exportTarget = fo.Target
			}
			if !cmd.Flags().Changed("manifest") && fo.Manifest != "" {
				exportManifest = fo.Manifest
			}
			if !cmd.Flags().Changed("subnet-bits") && fo.SubnetBits != 0 {
				exportBits = fo.SubnetBits
			}
			if !cmd.Flags().Changed("pool") && fo.Pool != "" {
				exportPool = fo.Pool
			}
		}
		opts := export.Options{
			Output:     exportOutput,
			Target:     export.Target(exportTarget),
			SubnetBits: exportBits,
			Manifest:   exportManifest,
		}
		if exportPool != "" {
			pool, err := netip.ParsePrefix(exportPool)
			if err != nil {
				return fmt.Errorf("invalid pool %q: %w", exportPool, err)
			}
			opts.PoolBase = pool
		}
		res, err := export.Export(g, opts)
		if err != nil {
			return err
		}
		for _, f := range res.Files {
			fmt.Println(f)
		}
		return nil
	},
	GroupID: "gen",
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "topology.py", "Output script path, or bundle directory for compose")
	exportCmd.Flags().StringVarP(&exportTarget, "target", "t", "mininet", "Deployment target (mininet or compose)")
	exportCmd.Flags().StringVarP(&exportManifest, "manifest", "m", "", "Also write an addressing manifest YAML")
	exportCmd.Flags().IntVar(&exportBits, "subnet-bits", 16, "Prefix length of every UE group subnet")
	exportCmd.Flags().StringVar(&exportPool, "pool", "", "Pool to carve unknown APN groups from (default 10.64.0.0/10)")
	exportCmd.Flags().StringVarP(&exportOptsFile, "config", "c", "", "Read export options from a YAML file; explicit flags win")
}
