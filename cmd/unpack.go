package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parflate/parflate/pkg/format"
	"github.com/parflate/parflate/pkg/parflate"
)

var (
	unpackWorkers   int
	unpackOut       string
	unpackOverwrite bool
)

var unpackCmd = &cobra.Command{
	Use:   "unpack [file]",
	Short: "Decompress a packed stream, decoding blocks in parallel",
	Long: `Unpack reads a .pflt stream, parses its block table, and decodes the
blocks across a pool of workers. Each worker writes into its own disjoint
slice of the output, so worker count never changes the result.

Example:
  parflate unpack dump.bin.pflt -j 8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inPath := args[0]

		stream, err := os.ReadFile(inPath)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		// The block table tells us the total output size up front.
		header, _, err := format.Parse(stream)
		if err != nil {
			return fmt.Errorf("not a valid parflate stream: %w", err)
		}

		outPath := unpackOut
		if outPath == "" {
			if strings.HasSuffix(inPath, packedExt) {
				outPath = strings.TrimSuffix(inPath, packedExt)
			} else {
				outPath = inPath + ".out"
			}
		}
		if _, err := os.Stat(outPath); err == nil && !unpackOverwrite {
			return fmt.Errorf("%s already exists (use --overwrite to replace it)", outPath)
		}

		start := time.Now()
		out := make([]byte, header.TotalUncompressed())
		if _, err := parflate.Decompress(stream, out, unpackWorkers); err != nil {
			return fmt.Errorf("decompression failed: %w", err)
		}

		if err := os.WriteFile(outPath, out, 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		log.WithFields(map[string]interface{}{
			"in":       len(stream),
			"out":      len(out),
			"blocks":   len(header.Blocks),
			"workers":  unpackWorkers,
			"duration": time.Since(start),
		}).Debug("unpacked")

		fmt.Printf("Unpacked %s -> %s (%d bytes, %d blocks)\n", inPath, outPath, len(out), len(header.Blocks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unpackCmd)

	unpackCmd.Flags().IntVarP(&unpackWorkers, "workers", "j", runtime.NumCPU(), "Number of decode workers (1 = sequential)")
	unpackCmd.Flags().StringVarP(&unpackOut, "output", "o", "", "Output path (default: input without .pflt)")
	unpackCmd.Flags().BoolVar(&unpackOverwrite, "overwrite", false, "Overwrite the output file if it exists")
}
