// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"os"

	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/tool"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vedit [command] (flags)",
	Short: "MANIFEST introspection tool",
	Long:  ``,
}

func main() {
	cobra.EnableCommandSorting = false
	t := tool.New()
	rootCmd.AddCommand(t.Commands...)

	logger := base.NewDefaultLogger(false /* verbose */)
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}
