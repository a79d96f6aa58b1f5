//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Command twinupdated runs the twin update / enforcement / search-index
// pipeline: it subscribes to the in-cluster change-notification bus,
// enforces policy over enriched twin signals, diffs the result against
// the last persisted search-index document, and bulk-writes the diff to
// MongoDB — one cooperative state machine per twin id.
//
// Wiring follows the teacher's cmd/weaviate/main.go shape: parse flags,
// load config, build the dependency graph, run until a shutdown signal,
// drain, exit with the status contract of spec.md §6 (0 clean shutdown,
// 1 config error, 2 persistence unavailable beyond backoff).
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	clusteradapter "github.com/ATNoG/eclipse-ditto/adapters/clients/cluster"
	mongorepo "github.com/ATNoG/eclipse-ditto/adapters/repos/mongo"

	"github.com/ATNoG/eclipse-ditto/entities/config"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/clusterbus"
	"github.com/ATNoG/eclipse-ditto/usecases/differ"
	"github.com/ATNoG/eclipse-ditto/usecases/enforcement"
	"github.com/ATNoG/eclipse-ditto/usecases/enrichment"
	"github.com/ATNoG/eclipse-ditto/usecases/monitoring"
	"github.com/ATNoG/eclipse-ditto/usecases/policy"
	"github.com/ATNoG/eclipse-ditto/usecases/updater"
	"github.com/ATNoG/eclipse-ditto/usecases/writer"
)

// exit status contract, spec.md §6.
const (
	exitClean           = 0
	exitConfigError     = 1
	exitPersistenceDown = 2
)

// options are the CLI flags, parsed with the same library the teacher's
// own entrypoint uses.
type options struct {
	ConfigPath  string `long:"config" description:"path to a YAML config file" value-name:"FILE"`
	MetricsAddr string `long:"metrics-addr" description:"address to serve /metrics on" default:"0.0.0.0:9102"`
	Demo        bool   `long:"demo" description:"run against in-memory demo fixtures instead of real things/policies/cluster services"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		logrus.WithError(err).Error("failed to parse command line flags")
		return exitConfigError
	}

	logger := logrus.WithField("app", "twinupdated")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		logger.WithError(err).Error("failed to load configuration")
		return exitConfigError
	}

	reg := prometheus.NewRegistry()
	metrics := monitoring.New(reg)
	go serveMetrics(opts.MetricsAddr, reg, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.WithError(err).Error("failed to connect to mongo")
		return exitPersistenceDown
	}
	defer mongoClient.Disconnect(context.Background())

	collection := mongoClient.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
	repo := mongorepo.New(collection, cfg.Parallelism)

	var fixtures *demoFixtures
	if opts.Demo {
		fixtures = newDemoFixtures()
		logger.Warn("running with in-memory demo fixtures, not a real things/policies/cluster service")
	}

	askCfg := clusterbus.AskConfig{Timeout: cfg.Ask.Timeout, Retries: cfg.Ask.Retries, Backoff: cfg.Ask.Backoff}

	enrichFacade := enrichment.New(cfg.CacheThing.Capacity, cfg.CacheThing.TTL, newThingFetcher(askCfg, fixtures), logger, metrics)
	policyCache := policy.NewCache(cfg.CachePolicy.Capacity, cfg.CachePolicy.TTL, newPolicyFetcher(askCfg, fixtures), logger, metrics)

	fetchPolicy := func(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool) (*policy.Enforcer, bool) {
		return policyCache.Get(ctx, policyID, requiredRevision, invalidate, cfg.CachePolicy.RetryDelay)
	}

	flow := enforcement.New(enforcement.Config{
		MaxArraySize: cfg.MaxArraySize,
		Parallelism:  cfg.Parallelism,
		Partitions:   cfg.Parallelism,
	}, enrichFacade.RetrieveThing, fetchPolicy, logger, metrics)

	taskDeps := updater.Deps{
		DifferConfig:     differ.Config{PatchSizeThreshold: cfg.PatchSizeThreshold},
		Logger:           logger,
		Metrics:          metrics,
		IdleTimeout:      cfg.UpdaterIdleTimeout,
		MaxRetries:       cfg.Ask.Retries,
		RetryBackoffBase: cfg.Ask.Backoff,
		RetryBackoffMax:  30 * time.Second,
		DrainTimeout:     cfg.ShutdownDrain,
	}

	tasks := newRegistry(ctx, flow, nil, collection, taskDeps, logger, metrics)

	bw := writer.New(writer.Config{
		Partitions:   cfg.Parallelism,
		MaxBulkSize:  cfg.MaxBulkSize,
		MaxBulkDelay: cfg.MaxBulkDelay,
		MaxRetries:   cfg.Ask.Retries,
		BackoffBase:  cfg.Ask.Backoff,
		BackoffMax:   30 * time.Second,
	}, repo, tasks.DeliverResult, logger, metrics)
	tasks.writer = bw

	bw.Start(ctx)
	defer bw.Stop()

	var bus clusterbus.Subscriber
	if opts.Demo {
		bus = clusteradapter.NewInMemory()
	} else {
		bus = clusteradapter.NewProductionStub()
	}

	unsubscribe, err := bus.Subscribe(ctx, tasks.Dispatch)
	if err != nil {
		logger.WithError(err).Warn("cluster bus unavailable, running with no inbound notifications")
	} else {
		defer unsubscribe()
	}

	logger.WithField("metricsAddr", opts.MetricsAddr).Info("twinupdated started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutdown signal received, draining in-flight work")
	tasks.shutdown(cfg.ShutdownDrain)
	cancel()

	logger.Info("twinupdated stopped cleanly")
	return exitClean
}

func serveMetrics(addr string, reg *prometheus.Registry, metrics *monitoring.Metrics, logger *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.WithError(err).Warn("metrics server failed to bind")
		return
	}
	ln = monitoring.CountingListener(ln, metrics.MetricsConnections)

	if err := http.Serve(ln, mux); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Warn("metrics server stopped")
	}
}
