// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Query the address provider",
}

var geocodeSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "List address candidates for free text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		resolver, err := newResolver(nil)
		if err != nil {
			return err
		}

		candidates := resolver.Search(context.Background(), strings.Join(args, " "))
		if len(candidates) == 0 {
			fmt.Println("no candidates")

			return nil
		}

		for i, c := range candidates {
			fmt.Printf("%d. %s\n   %.6f, %.6f\n", i+1, c.Label, c.Point.Lat, c.Point.Lng)
		}

		return nil
	},
}

var geocodeResolveCmd = &cobra.Command{
	Use:   "resolve <text>",
	Short: "Resolve free text to a single coordinate",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		resolver, err := newResolver(nil)
		if err != nil {
			return err
		}

		text := strings.Join(args, " ")

		pt := resolver.Resolve(context.Background(), text)
		if pt == nil {
			return fmt.Errorf("could not resolve %q", text)
		}

		fmt.Printf("%.6f, %.6f\n", pt.Lat, pt.Lng)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
	geocodeCmd.AddCommand(geocodeSearchCmd)
	geocodeCmd.AddCommand(geocodeResolveCmd)
}
