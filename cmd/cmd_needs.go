// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zerohunger/connect/needs"
	"github.com/zerohunger/connect/spatial"
	"github.com/zerohunger/connect/utils/textutils"
)

var needsCmd = &cobra.Command{
	Use:   "needs",
	Short: "Inspect the food bank and food insecurity datasets",
}

var needsListCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List the food banks, optionally filtered by name, address or city",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, _, points, err := openCatalog()
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			points = needs.Filter(points, args[0])
		}

		a, b, c := strings.Repeat("─", 8), strings.Repeat("─", 40), strings.Repeat("─", 24)
		fmt.Printf("╭─%-8s─┬─%-40s─┬─%-24s─╮\n", a, b, c)
		fmt.Printf("│ %-8s │ %-40s │ %-24s │\n", "Id", "Name", "City")
		fmt.Printf("├─%-8s─┼─%-40s─┼─%-24s─┤\n", a, b, c)

		for _, p := range points {
			fmt.Printf("│ %-8s │ %-40s │ %-24s │\n", p.ID, textutils.Truncate(p.Name, 40), textutils.Truncate(p.City, 24))
		}

		fmt.Printf("╰─%-8s─┴─%-40s─┴─%-24s─╯\n", a, b, c)
		fmt.Printf("%s food banks\n", textutils.FormatInt(int64(len(points))))

		return nil
	},
}

var nearbyOptions struct {
	Lat, Lng float64
	Limit    int
}

var needsNearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Rank food banks by distance to a coordinate",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ref := spatial.Point{Lat: nearbyOptions.Lat, Lng: nearbyOptions.Lng}
		if err := ref.Validate(); err != nil {
			return err
		}

		db, _, points, err := openCatalog()
		if err != nil {
			return err
		}
		defer db.Close()

		for i, m := range needs.Rank(ref, points, nearbyOptions.Limit) {
			fmt.Printf("%2d. %-40s %7.2f km  %s\n", i+1, textutils.Truncate(m.Name, 40), m.DistanceKm, m.Address)
		}

		return nil
	},
}

var insecurityTop int

var needsInsecurityCmd = &cobra.Command{
	Use:   "insecurity",
	Short: "Show the regions with the highest food insecurity",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, _, err := openCatalog()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := repo.TopInsecurity(insecurityTop)
		if err != nil {
			return fmt.Errorf("querying insecurity: %w", err)
		}

		for i, s := range stats {
			fmt.Printf("%2d. %-56s %5.1f%%\n", i+1, textutils.Truncate(s.Region, 56), s.Percent)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(needsCmd)
	needsCmd.AddCommand(needsListCmd)
	needsCmd.AddCommand(needsNearbyCmd)
	needsCmd.AddCommand(needsInsecurityCmd)

	needsNearbyCmd.Flags().Float64Var(&nearbyOptions.Lat, "lat", 0, "Latitude in degrees")
	needsNearbyCmd.Flags().Float64Var(&nearbyOptions.Lng, "lng", 0, "Longitude in degrees")
	needsNearbyCmd.Flags().IntVar(&nearbyOptions.Limit, "limit", 5, "Number of results; 0 for all")
	_ = needsNearbyCmd.MarkFlagRequired("lat")
	_ = needsNearbyCmd.MarkFlagRequired("lng")

	needsInsecurityCmd.Flags().IntVar(&insecurityTop, "top", 3, "Number of regions; 0 for all")
}
