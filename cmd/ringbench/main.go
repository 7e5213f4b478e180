// Copyright (c) 2026 - The Event Horizon authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command ringbench dispatches commands to one aggregate through the ring
// buffer command bus and reports the throughput.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		flags      = DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:           "ringbench",
		Short:         "Benchmark the ring buffer command bus",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}

			applyFlags(cmd, &cfg, flags)

			_, err = run(cmd.Context(), cfg, cmd.OutOrStdout())

			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.IntVarP(&flags.Commands, "commands", "n", flags.Commands, "number of commands to dispatch")
	f.StringVar(&flags.AggregateID, "aggregate-id", flags.AggregateID, "ID of the benchmarked aggregate")
	f.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "wait for stores and publications after dispatching")
	f.StringVar(&flags.Store, "store", flags.Store, "event store: memory, badger, postgres or mongodb")
	f.StringVar(&flags.StoreURI, "store-uri", flags.StoreURI, "database URI, or directory for badger")
	f.StringVar(&flags.Database, "database", flags.Database, "MongoDB database name")
	f.StringVar(&flags.Publisher, "publisher", flags.Publisher, "event publisher: none, local, redis, kafka, nats or gcp")
	f.StringVar(&flags.PublisherAddr, "publisher-addr", flags.PublisherAddr, "broker address, or project ID for gcp")
	f.StringVar(&flags.AppID, "app-id", flags.AppID, "broker topic and group prefix")
	f.StringVar(&flags.Codec, "codec", flags.Codec, "event codec: json or msgpack")
	f.IntVar(&flags.BufferSize, "buffer-size", flags.BufferSize, "ring buffer slots, a power of two")
	f.IntVar(&flags.Partitions, "partitions", flags.Partitions, "aggregate partitions, a power of two")
	f.IntVar(&flags.Workers, "workers", flags.Workers, "worker goroutines, 0 for GOMAXPROCS")
	f.IntVar(&flags.CacheSize, "cache-size", flags.CacheSize, "aggregates cached per worker")
	f.StringVar(&flags.Backpressure, "backpressure", flags.Backpressure, "full ring policy: block or fail-fast")
	f.StringVar(&flags.WaitStrategy, "wait-strategy", flags.WaitStrategy, "idle workers: blocking, yielding or busy-spin")
	f.StringVar(&flags.HTTPAddr, "http-addr", flags.HTTPAddr, "serve metrics, histories and the event stream")
	f.StringVar(&flags.TracingAddr, "tracing-addr", flags.TracingAddr, "Jaeger agent host:port")

	return cmd
}

// applyFlags overrides the loaded config with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config, flags Config) {
	changed := cmd.Flags().Changed

	if changed("commands") {
		cfg.Commands = flags.Commands
	}
	if changed("aggregate-id") {
		cfg.AggregateID = flags.AggregateID
	}
	if changed("timeout") {
		cfg.Timeout = flags.Timeout
	}
	if changed("store") {
		cfg.Store = flags.Store
	}
	if changed("store-uri") {
		cfg.StoreURI = flags.StoreURI
	}
	if changed("database") {
		cfg.Database = flags.Database
	}
	if changed("publisher") {
		cfg.Publisher = flags.Publisher
	}
	if changed("publisher-addr") {
		cfg.PublisherAddr = flags.PublisherAddr
	}
	if changed("app-id") {
		cfg.AppID = flags.AppID
	}
	if changed("codec") {
		cfg.Codec = flags.Codec
	}
	if changed("buffer-size") {
		cfg.BufferSize = flags.BufferSize
	}
	if changed("partitions") {
		cfg.Partitions = flags.Partitions
	}
	if changed("workers") {
		cfg.Workers = flags.Workers
	}
	if changed("cache-size") {
		cfg.CacheSize = flags.CacheSize
	}
	if changed("backpressure") {
		cfg.Backpressure = flags.Backpressure
	}
	if changed("wait-strategy") {
		cfg.WaitStrategy = flags.WaitStrategy
	}
	if changed("http-addr") {
		cfg.HTTPAddr = flags.HTTPAddr
	}
	if changed("tracing-addr") {
		cfg.TracingAddr = flags.TracingAddr
	}
}
