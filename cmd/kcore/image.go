// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/teachos/kcore"
	"github.com/teachos/kcore/internal/disk"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "convert disk images",
	Long: `
Disk images are raw concatenations of blocks. Images whose name ends in .zst
are zstd compressed, .sz snappy compressed; anything else is raw.
`,
}

var imagePackCmd = &cobra.Command{
	Use:   "pack <raw-image> <compressed-image>",
	Short: "compress a raw disk image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if c := disk.CodecForPath(args[0]); c != disk.CodecNone {
			return errors.Newf("%s is already %s compressed", args[0], c)
		}
		if disk.CodecForPath(args[1]) == disk.CodecNone {
			return errors.Newf("%s does not name a compressed image (.zst or .sz)", args[1])
		}
		return convertImage(cmd, args[0], args[1])
	},
}

var imageUnpackCmd = &cobra.Command{
	Use:   "unpack <compressed-image> <raw-image>",
	Short: "decompress a disk image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if disk.CodecForPath(args[0]) == disk.CodecNone {
			return errors.Newf("%s does not name a compressed image (.zst or .sz)", args[0])
		}
		if c := disk.CodecForPath(args[1]); c != disk.CodecNone {
			return errors.Newf("%s names a %s compressed image", args[1], c)
		}
		return convertImage(cmd, args[0], args[1])
	},
}

func init() {
	imageCmd.AddCommand(imagePackCmd, imageUnpackCmd)
}

func convertImage(cmd *cobra.Command, src, dst string) error {
	img, err := disk.ReadImage(src)
	if err != nil {
		return err
	}
	if len(img)%kcore.BlockSize != 0 {
		return errors.Newf("%s: size %d is not a multiple of the block size %d", src, len(img), kcore.BlockSize)
	}
	if err := disk.WriteImage(dst, img); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d blocks (%s), %s -> %s\n",
		dst, len(img)/kcore.BlockSize, crhumanize.Bytes(len(img), crhumanize.Compact, crhumanize.OmitI),
		disk.CodecForPath(src), disk.CodecForPath(dst))
	return nil
}
