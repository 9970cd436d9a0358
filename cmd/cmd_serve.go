// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/zerohunger/connect/advisory"
	"github.com/zerohunger/connect/geocode"
	"github.com/zerohunger/connect/matching"
	"github.com/zerohunger/connect/metrics"
	"github.com/zerohunger/connect/registry"
	"github.com/zerohunger/connect/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the donation matching API",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, points, err := openCatalog()
		if err != nil {
			return err
		}
		defer db.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)

		resolver, err := newResolver(m)
		if err != nil {
			return err
		}

		posts := registry.New(registry.Options{Metrics: m})
		advisor := advisory.New(context.Background(), os.Getenv("GEMINI_API_KEY"), advisory.GeminiOptions{Metrics: m})

		srv := server.NewServer(server.Deps{
			Pipeline: matching.New(points, posts, advisor, matching.Options{}),
			Registry: posts,
			Needs:    repo,
			Lookup:   resolver,
			Field:    geocode.FieldOptions{Metrics: m},
			Gatherer: reg,
		})
		defer srv.Close()

		return srv.Run(serveAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", envOr("ZHC_ADDR", "localhost:8080"), "Listen address")
}
