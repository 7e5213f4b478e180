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

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/looplab/ringhorizon/commandbus/disruptor"
)

// Config is the benchmark configuration. Values are read from a YAML file,
// then from RINGBENCH_* environment variables and last from flags.
type Config struct {
	// Commands is the number of commands to dispatch.
	Commands int `yaml:"commands" env:"COMMANDS"`
	// AggregateID is the single aggregate targeted by all commands.
	AggregateID string `yaml:"aggregateID" env:"AGGREGATE_ID"`
	// Timeout is how long to wait for all events to be stored and published
	// after the last dispatch.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// Store is one of memory, badger, postgres or mongodb.
	Store string `yaml:"store" env:"STORE"`
	// StoreURI is the database URI, or the directory for badger. An empty
	// badger directory keeps the database in memory.
	StoreURI string `yaml:"storeURI" env:"STORE_URI"`
	// Database is the MongoDB database name.
	Database string `yaml:"database" env:"DATABASE"`

	// Publisher is one of none, local, redis, kafka, nats or gcp.
	Publisher string `yaml:"publisher" env:"PUBLISHER"`
	// PublisherAddr is the broker address, or the project ID for gcp.
	PublisherAddr string `yaml:"publisherAddr" env:"PUBLISHER_ADDR"`
	// AppID prefixes the broker topics and groups.
	AppID string `yaml:"appID" env:"APP_ID"`
	// Codec is json or msgpack, used by badger and the brokers.
	Codec string `yaml:"codec" env:"CODEC"`

	BufferSize   int    `yaml:"bufferSize" env:"BUFFER_SIZE"`
	Partitions   int    `yaml:"partitions" env:"PARTITIONS"`
	Workers      int    `yaml:"workers" env:"WORKERS"`
	CacheSize    int    `yaml:"cacheSize" env:"CACHE_SIZE"`
	Backpressure string `yaml:"backpressure" env:"BACKPRESSURE"`
	WaitStrategy string `yaml:"waitStrategy" env:"WAIT_STRATEGY"`

	// HTTPAddr serves /metrics, /events/{id} and /stream when set, such as ":9090".
	HTTPAddr string `yaml:"httpAddr" env:"HTTP_ADDR"`
	// TracingAddr is a Jaeger agent (host:port) to send spans to when set.
	TracingAddr string `yaml:"tracingAddr" env:"TRACING_ADDR"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Commands:     1000000,
		AggregateID:  "MyID",
		Timeout:      5 * time.Second,
		Store:        "memory",
		Database:     "ringbench",
		Publisher:    "none",
		AppID:        "ringbench",
		Codec:        "json",
		BufferSize:   disruptor.DefaultBufferSize,
		Partitions:   disruptor.DefaultPartitions,
		CacheSize:    disruptor.DefaultCacheSize,
		Backpressure: disruptor.Block.String(),
		WaitStrategy: "blocking",
	}
}

// LoadConfig reads the optional YAML file at path on top of the defaults and
// then the environment on top of that.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("could not read config: %w", err)
		}

		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("could not parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "RINGBENCH_"}); err != nil {
		return cfg, fmt.Errorf("could not parse env: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that are not checked by the bus options.
func (c Config) Validate() error {
	if c.Commands <= 0 {
		return fmt.Errorf("commands must be positive: %d", c.Commands)
	}

	if c.AggregateID == "" {
		return fmt.Errorf("missing aggregate ID")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %s", c.Timeout)
	}

	switch c.Store {
	case "memory", "badger":
	case "postgres", "mongodb":
		if c.StoreURI == "" {
			return fmt.Errorf("missing store URI for %s", c.Store)
		}
	default:
		return fmt.Errorf("unknown store: %q", c.Store)
	}

	switch c.Publisher {
	case "none", "local":
	case "redis", "kafka", "nats", "gcp":
		if c.PublisherAddr == "" {
			return fmt.Errorf("missing publisher address for %s", c.Publisher)
		}
	default:
		return fmt.Errorf("unknown publisher: %q", c.Publisher)
	}

	switch c.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("unknown codec: %q", c.Codec)
	}

	if _, err := c.backpressure(); err != nil {
		return err
	}

	if _, err := c.waitStrategy(); err != nil {
		return err
	}

	return nil
}

func (c Config) backpressure() (disruptor.Backpressure, error) {
	switch c.Backpressure {
	case disruptor.Block.String():
		return disruptor.Block, nil
	case disruptor.FailFast.String():
		return disruptor.FailFast, nil
	default:
		return 0, fmt.Errorf("unknown backpressure: %q", c.Backpressure)
	}
}

func (c Config) waitStrategy() (disruptor.WaitStrategy, error) {
	switch c.WaitStrategy {
	case "blocking":
		return disruptor.NewBlockingWaitStrategy(), nil
	case "yielding":
		return disruptor.NewYieldingWaitStrategy(), nil
	case "busy-spin":
		return disruptor.NewBusySpinWaitStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown wait strategy: %q", c.WaitStrategy)
	}
}

// busOptions maps the configuration to bus options. Zero workers keeps the
// bus default.
func (c Config) busOptions() ([]disruptor.Option, error) {
	bp, err := c.backpressure()
	if err != nil {
		return nil, err
	}

	ws, err := c.waitStrategy()
	if err != nil {
		return nil, err
	}

	options := []disruptor.Option{
		disruptor.WithBufferSize(c.BufferSize),
		disruptor.WithPartitions(c.Partitions),
		disruptor.WithCacheSize(c.CacheSize),
		disruptor.WithBackpressure(bp),
		disruptor.WithWaitStrategy(ws),
	}

	if c.Workers > 0 {
		options = append(options, disruptor.WithWorkers(c.Workers))
	}

	return options, nil
}
