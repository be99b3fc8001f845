package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "parflate",
	Short: "Block-parallel compression for single buffers and files",
	Long: `parflate compresses files with a block-structured codec whose blocks
decode independently, so decompression scales across CPU cores.

It can also scatter a compressed file into N erasure-coded shards of
which any T rebuild the original.`,
	Version: "1.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(os.Stderr)
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		} else {
			log.SetLevel(logrus.WarnLevel)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
