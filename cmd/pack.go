package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/parflate/parflate/pkg/parflate"
)

const packedExt = ".pflt"

var (
	packLevel     int
	packBlockSize int
	packChecksum  bool
	packOut       string
)

var packCmd = &cobra.Command{
	Use:   "pack [file]",
	Short: "Compress a file into a block-parallel stream",
	Long: `Pack compresses a file into a .pflt stream. Blocks are compressed
independently, so unpack can decode them across multiple CPU cores.

Example:
  parflate pack dump.bin -l 9 --checksum`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inPath := args[0]

		raw, err := os.ReadFile(inPath)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		var flags parflate.Flags
		if packChecksum {
			flags |= parflate.FlagChecksum
		}

		start := time.Now()
		buf := make([]byte, parflate.CompressBound(len(raw)))
		n, err := parflate.CompressWithBlockSize(raw, buf, parflate.Level(packLevel), flags, packBlockSize)
		if err != nil {
			return fmt.Errorf("compression failed: %w", err)
		}

		outPath := packOut
		if outPath == "" {
			outPath = inPath + packedExt
		}
		if err := os.WriteFile(outPath, buf[:n], 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		ratio := 0.0
		if len(raw) > 0 {
			ratio = float64(n) / float64(len(raw)) * 100
		}
		log.WithFields(map[string]interface{}{
			"in":       len(raw),
			"out":      n,
			"level":    packLevel,
			"block":    packBlockSize,
			"duration": time.Since(start),
		}).Debug("packed")

		fmt.Printf("Packed %s -> %s (%d -> %d bytes, %.1f%%)\n", inPath, outPath, len(raw), n, ratio)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(packCmd)

	packCmd.Flags().IntVarP(&packLevel, "level", "l", int(parflate.Default), "Compression level (1-9)")
	packCmd.Flags().IntVarP(&packBlockSize, "block-size", "b", parflate.DefaultBlockSize, "Block size in bytes (power of two, 64KiB-256KiB)")
	packCmd.Flags().BoolVarP(&packChecksum, "checksum", "c", false, "Store an xxhash64 checksum of the uncompressed data")
	packCmd.Flags().StringVarP(&packOut, "output", "o", "", "Output path (default: input + .pflt)")
}
