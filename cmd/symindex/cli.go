package main

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/metrics"
)

// Dependencies holds the services commands run against. Catalog and
// Publisher are nil when postgres or kafka are not configured.
type Dependencies struct {
	Ctx       context.Context
	Stdout    io.Writer
	Stderr    io.Writer
	Config    *config.Config
	Blobs     blobstore.Store
	Catalog   *catalog.PostgresSource
	Publisher kafka.Publisher
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `short:"c" type:"path" env:"SYMIDX_CONFIG" help:"Path to a YAML config file"`
	Verbose bool   `short:"v" help:"Log at debug level"`

	Build    BuildCmd    `cmd:"" help:"Build a generation from a symbol catalog and publish it"`
	Inspect  InspectCmd  `cmd:"" help:"Show the manifest of a generation"`
	Query    QueryCmd    `cmd:"" help:"Run a query against a stored generation"`
	Loadtest LoadtestCmd `cmd:"" help:"Send search traffic to a running search service"`
}

// BuildCmd is the "build" subcommand.
type BuildCmd struct {
	Catalog         string `arg:"" optional:"" type:"existingfile" help:"JSON or JSON-lines catalog; omit to read the postgres symbols table"`
	Compression     string `help:"Override builder.compression (none, lz4, zstd)"`
	Import          bool   `help:"Append the catalog file to the postgres symbols table before building"`
	Prune           bool   `help:"Delete every other generation after publishing"`
	NoPublish       bool   `name:"no-publish" help:"Do not announce the generation on kafka"`
	MetricsTextfile string `name:"metrics-textfile" type:"path" help:"Write build metrics in Prometheus text format"`
}

// InspectCmd is the "inspect" subcommand.
type InspectCmd struct {
	Generation string `short:"g" help:"Generation to inspect; defaults to CURRENT"`
	JSON       bool   `help:"Print the manifest as JSON"`
}

// QueryCmd is the "query" subcommand.
type QueryCmd struct {
	Query      string `arg:"" help:"Symbol name, optionally qualified (ns::name)"`
	Limit      int    `short:"n" default:"20" help:"Maximum number of results"`
	Generation string `short:"g" help:"Generation to query; defaults to CURRENT"`
	JSON       bool   `help:"Print the result as JSON"`
}

// LoadtestCmd is the "loadtest" subcommand.
type LoadtestCmd struct {
	URL         string        `default:"http://localhost:8080" help:"Base URL of the search service"`
	Concurrency int           `short:"C" default:"10" help:"Concurrent workers"`
	Duration    time.Duration `short:"d" default:"30s" help:"How long to send traffic"`
	Limit       int           `default:"10" help:"limit parameter of each search"`
	Queries     string        `type:"existingfile" help:"File with one query per line; defaults to names sampled from the current generation"`
	Sample      int           `default:"200" help:"Number of queries sampled from the index"`
}
