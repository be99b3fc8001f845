package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parflate/parflate/pkg/pipeline"
	"github.com/parflate/parflate/pkg/sharding"
)

var (
	gatherDir       string
	gatherWorkers   int
	gatherOverwrite bool
)

var gatherCmd = &cobra.Command{
	Use:   "gather [directory]",
	Short: "Reconstruct original files from a set of shards",
	Long: `Gather scans a directory (default: current) for .pfls shard files,
groups them by origin, and reconstructs every file for which at least the
threshold number of shards is present.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceDir := "."
		if len(args) > 0 {
			sourceDir = args[0]
		}

		files, err := os.ReadDir(sourceDir)
		if err != nil {
			return fmt.Errorf("failed to read directory: %w", err)
		}

		type loadedShard struct {
			Path string
			Meta *sharding.Meta
			Data []byte
		}

		// Group shards by origin so mixed directories still work.
		groups := make(map[string][]*loadedShard)

		fmt.Printf("Scanning for shards in %s...\n", sourceDir)

		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), shardExt) {
				continue
			}

			path := filepath.Join(sourceDir, f.Name())
			file, err := os.Open(path)
			if err != nil {
				fmt.Printf("Skipping unreadable file %s: %v\n", f.Name(), err)
				continue
			}
			meta, data, err := sharding.ReadShard(file)
			file.Close()
			if err != nil {
				fmt.Printf("Skipping invalid shard %s: %v\n", f.Name(), err)
				continue
			}

			groupID := fmt.Sprintf("%s|%d", meta.OriginalName, meta.Timestamp)
			groups[groupID] = append(groups[groupID], &loadedShard{Path: path, Meta: meta, Data: data})
		}

		if len(groups) == 0 {
			return fmt.Errorf("no valid shards found in %s", sourceDir)
		}

		if gatherDir != "" {
			if err := os.MkdirAll(gatherDir, 0755); err != nil {
				return fmt.Errorf("failed to create destination directory: %w", err)
			}
		}

		for _, group := range groups {
			ref := group[0].Meta
			fmt.Printf("\nFound %d shard(s) for %s (need %d of %d)\n", len(group), ref.OriginalName, ref.Threshold, ref.Total)

			if len(group) < ref.Threshold {
				fmt.Printf("Not enough shards to gather %s. Need %d, found %d.\n", ref.OriginalName, ref.Threshold, len(group))
				continue
			}

			shardMap := make(map[int][]byte)
			for _, s := range group {
				shardMap[s.Meta.Index] = s.Data
			}

			plain, err := pipeline.Gather(shardMap, ref.StreamSize, ref.Total, ref.Threshold, gatherWorkers)
			if err != nil {
				fmt.Printf("Gather pipeline failed for %s: %v\n", ref.OriginalName, err)
				continue
			}

			finalPath := ref.OriginalName
			if gatherDir != "" {
				finalPath = filepath.Join(gatherDir, ref.OriginalName)
			}
			if _, err := os.Stat(finalPath); err == nil && !gatherOverwrite {
				fmt.Printf("File %s already exists. Use --overwrite to replace it.\n", finalPath)
				continue
			}

			if err := os.WriteFile(finalPath, plain, 0644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}

			log.WithFields(map[string]interface{}{
				"file":    ref.OriginalName,
				"shards":  len(group),
				"workers": gatherWorkers,
			}).Debug("gathered")

			fmt.Printf("Reconstructed %s (%d bytes)\n", finalPath, len(plain))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatherCmd)

	gatherCmd.Flags().StringVarP(&gatherDir, "destination", "d", "", "Directory to write reconstructed files")
	gatherCmd.Flags().IntVarP(&gatherWorkers, "workers", "j", runtime.NumCPU(), "Number of decode workers")
	gatherCmd.Flags().BoolVar(&gatherOverwrite, "overwrite", false, "Overwrite existing files")
}
