package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/parflate/parflate/pkg/parflate"
	"github.com/parflate/parflate/pkg/pipeline"
	"github.com/parflate/parflate/pkg/sharding"
)

const shardExt = ".pfls"

var (
	scatterTotal     int
	scatterThreshold int
	scatterDir       string
	scatterLevel     int
	scatterBlockSize int
	scatterChecksum  bool
)

var scatterCmd = &cobra.Command{
	Use:   "scatter [file]",
	Short: "Compress a file and spread it across erasure-coded shards",
	Long: `Scatter compresses a file and splits the stream into N shard files.
Any T of them reconstruct the original; the rest are parity.

Example:
  parflate scatter backup.tar -n 5 -t 3

  This creates 5 .pfls files. Any 3 are enough for gather.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath := args[0]

		if scatterTotal < 3 {
			return fmt.Errorf("number of shards (-n) must be at least 3")
		}
		if scatterThreshold < 2 || scatterThreshold >= scatterTotal {
			return fmt.Errorf("threshold (-t) must be between 2 and n-1")
		}

		destDir := scatterDir
		if destDir == "" {
			destDir = filepath.Dir(filePath)
		}
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}

		var flags parflate.Flags
		if scatterChecksum {
			flags |= parflate.FlagChecksum
		}

		file, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()

		shards, streamSize, err := pipeline.Scatter(file, pipeline.Config{
			Level:     parflate.Level(scatterLevel),
			Flags:     flags,
			BlockSize: scatterBlockSize,
			Total:     scatterTotal,
			Threshold: scatterThreshold,
		})
		if err != nil {
			return fmt.Errorf("scatter pipeline failed: %w", err)
		}

		originalName := filepath.Base(filePath)
		timestamp := time.Now().Unix()

		for _, shard := range shards {
			ext := filepath.Ext(originalName)
			nameNoExt := originalName[:len(originalName)-len(ext)]
			outName := fmt.Sprintf("%s_%d_of_%d%s", nameNoExt, shard.Index+1, scatterTotal, shardExt)
			outPath := filepath.Join(destDir, outName)

			outFile, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create shard file %s: %w", outPath, err)
			}

			meta := &sharding.Meta{
				OriginalName: originalName,
				Timestamp:    timestamp,
				Index:        shard.Index,
				Total:        scatterTotal,
				Threshold:    scatterThreshold,
				StreamSize:   streamSize,
			}
			err = sharding.WriteShard(outFile, meta, shard.Data)
			closeErr := outFile.Close()
			if err != nil {
				return fmt.Errorf("failed to write shard %d: %w", shard.Index+1, err)
			}
			if closeErr != nil {
				return fmt.Errorf("failed to close shard %d: %w", shard.Index+1, closeErr)
			}

			fmt.Printf("Created %s\n", outName)
		}

		log.WithFields(map[string]interface{}{
			"shards":    scatterTotal,
			"threshold": scatterThreshold,
			"stream":    streamSize,
		}).Debug("scattered")

		fmt.Printf("Done. Any %d of the %d shards reconstruct %s.\n", scatterThreshold, scatterTotal, originalName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scatterCmd)

	scatterCmd.Flags().IntVarP(&scatterTotal, "shards", "n", 0, "Total number of shard files to create")
	scatterCmd.Flags().IntVarP(&scatterThreshold, "threshold", "t", 0, "Number of shards required to gather")
	scatterCmd.Flags().StringVarP(&scatterDir, "destination", "d", "", "Directory to write shards (default: alongside the input)")
	scatterCmd.Flags().IntVarP(&scatterLevel, "level", "l", int(parflate.Default), "Compression level (1-9)")
	scatterCmd.Flags().IntVarP(&scatterBlockSize, "block-size", "b", parflate.DefaultBlockSize, "Block size in bytes (power of two, 64KiB-256KiB)")
	scatterCmd.Flags().BoolVarP(&scatterChecksum, "checksum", "c", false, "Store an xxhash64 checksum of the uncompressed data")

	scatterCmd.MarkFlagRequired("shards")
	scatterCmd.MarkFlagRequired("threshold")
}
