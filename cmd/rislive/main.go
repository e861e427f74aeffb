package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/bgpkit/ris-live-go/internal/config"
	"github.com/bgpkit/ris-live-go/internal/decode"
	"github.com/bgpkit/ris-live-go/internal/emit"
	"github.com/bgpkit/ris-live-go/internal/feed"
	"github.com/bgpkit/ris-live-go/internal/health"
	"github.com/bgpkit/ris-live-go/internal/logging"
	"github.com/bgpkit/ris-live-go/internal/metrics"
	"github.com/bgpkit/ris-live-go/internal/output"
	"github.com/bgpkit/ris-live-go/internal/queue"
	"github.com/bgpkit/ris-live-go/internal/stats"
	"github.com/bgpkit/ris-live-go/internal/stream"
	"github.com/bgpkit/ris-live-go/internal/subscribe"
	"github.com/bgpkit/ris-live-go/internal/telemetry"
)

const version = "0.2.0"

func main() {
	var configFile string
	var url string
	var client string
	var host string
	var msgType string
	var updateType string
	var require string
	var peer string
	var prefix string
	var path string
	var moreSpecific bool
	var lessSpecific bool
	var format string
	var jsonOut bool
	var pretty bool
	var raw bool
	var ingest string
	var batchMax int
	var batchFlushSec int
	var spoolDir string
	var mtlsCert, mtlsKey, mtlsCA string
	var redisAddr string
	var redisKey string
	var metricsAddr string
	var otelEndpoint string
	var otelInsecure bool
	var otelService string
	var verbose bool
	var showVersion bool

	// Add config file flag
	flag.StringVar(&configFile, "config", "", "path to config file (YAML or JSON)")
	flag.StringVar(&url, "url", "", "feed websocket URL")
	flag.StringVar(&client, "client", "", "client name reported to the collector")
	flag.StringVar(&host, "host", "", "route collector to subscribe to, e.g. rrc21 ('all' for every collector)")
	flag.StringVar(&msgType, "msg_type", "", "only subscribe to one message kind (UPDATE, OPEN, NOTIFICATION, KEEPALIVE, RIS_PEER_STATE)")
	flag.StringVar(&updateType, "update_type", "", "only produce announcements or withdrawals (a/w)")
	flag.StringVar(&require, "require", "", "only receive messages containing the given key, e.g. announcements")
	flag.StringVar(&peer, "peer", "", "only receive messages from the given peer address")
	flag.StringVar(&prefix, "prefix", "", "only receive updates touching the given prefix")
	flag.StringVar(&path, "path", "", "only receive updates whose AS path matches the given pattern")
	flag.BoolVar(&moreSpecific, "more_specific", false, "match prefixes more specific than -prefix")
	flag.BoolVar(&lessSpecific, "less_specific", false, "match prefixes less specific than -prefix")
	flag.StringVar(&format, "format", "", "output format (line, json, jsonl, csv)")
	flag.BoolVar(&jsonOut, "json", false, "shorthand for -format=json")
	flag.BoolVar(&pretty, "pretty", false, "pretty-print JSON output")
	flag.BoolVar(&raw, "raw", false, "print raw feed messages without decoding")
	flag.StringVar(&ingest, "ingest", "", "ingest endpoint (optional). If empty, elements go to stdout only")
	flag.IntVar(&batchMax, "batch_max", 0, "max elements per ingest batch before flush")
	flag.IntVar(&batchFlushSec, "batch_flush_sec", 0, "seconds timer to flush an ingest batch")
	flag.StringVar(&spoolDir, "spool_dir", "", "spool dir for failed ingest batches")
	flag.StringVar(&mtlsCert, "mtls_cert", "", "client cert (PEM) for mTLS to ingest")
	flag.StringVar(&mtlsKey, "mtls_key", "", "client key (PEM) for mTLS to ingest")
	flag.StringVar(&mtlsCA, "mtls_ca", "", "CA bundle (PEM) for mTLS to ingest")
	flag.StringVar(&redisAddr, "redis_addr", "", "redis addr to publish elements to (empty to disable)")
	flag.StringVar(&redisKey, "redis_key", "", "redis list key for published elements")
	flag.StringVar(&metricsAddr, "metrics_addr", "", "metrics listen addr (empty to disable)")
	flag.StringVar(&otelEndpoint, "otel_endpoint", "", "OTLP HTTP endpoint (host:port)")
	flag.BoolVar(&otelInsecure, "otel_insecure", true, "OTLP insecure (no TLS)")
	flag.StringVar(&otelService, "otel_service", "", "OTEL service.name")
	flag.BoolVar(&verbose, "verbose", false, "verbose logging")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")

	// Custom usage function
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "rislive - stream and decode the RIS Live BGP feed\n")
		fmt.Fprintf(os.Stderr, "Connects to a RIPE RIS Live collector, expands routing messages into\n")
		fmt.Fprintf(os.Stderr, "per-prefix elements and writes them to stdout or downstream sinks\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -host=rrc00 -msg_type=UPDATE\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -prefix=192.0.2.0/24 -more_specific -json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config=config.yaml -format=csv > updates.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  RIS_LIVE_URL     Feed websocket URL\n")
		fmt.Fprintf(os.Stderr, "  RIS_LIVE_CLIENT  Client name reported to the collector\n")
		fmt.Fprintf(os.Stderr, "  REDIS_ADDR       Redis server for the element sink\n")
		fmt.Fprintf(os.Stderr, "  REDIS_KEY        Redis list key for published elements\n")
	}

	flag.Parse()

	// Handle version flag
	if showVersion {
		fmt.Println("rislive v" + version)
		fmt.Println("Built with Go", strings.TrimPrefix(runtime.Version(), "go"))
		os.Exit(0)
	}

	log := logging.New(verbose)
	defer log.Sync()

	// Load configuration
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			log.Fatalw("failed to load config file", "file", configFile, "err", err)
		}
		log.Infow("loaded config from file", "file", configFile)
	} else {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}

	cfg.LoadFromEnv()

	// Override with command-line flags (if provided)
	flags := make(map[string]interface{})
	if url != "" {
		flags["url"] = url
	}
	if client != "" {
		flags["client"] = client
	}
	if host != "" {
		flags["host"] = host
	}
	if msgType != "" {
		flags["msg_type"] = msgType
	}
	if updateType != "" {
		flags["update_type"] = updateType
	}
	if require != "" {
		flags["require"] = require
	}
	if peer != "" {
		flags["peer"] = peer
	}
	if prefix != "" {
		flags["prefix"] = prefix
	}
	if path != "" {
		flags["path"] = path
	}
	if format != "" {
		flags["format"] = format
	}
	if jsonOut {
		flags["format"] = "json"
	}
	if ingest != "" {
		flags["ingest"] = ingest
	}
	if batchMax > 0 {
		flags["batch_max"] = batchMax
	}
	if batchFlushSec > 0 {
		flags["batch_flush_sec"] = batchFlushSec
	}
	if spoolDir != "" {
		flags["spool_dir"] = spoolDir
	}
	if mtlsCert != "" {
		flags["mtls_cert"] = mtlsCert
	}
	if mtlsKey != "" {
		flags["mtls_key"] = mtlsKey
	}
	if mtlsCA != "" {
		flags["mtls_ca"] = mtlsCA
	}
	if redisAddr != "" {
		flags["redis_addr"] = redisAddr
	}
	if redisKey != "" {
		flags["redis_key"] = redisKey
	}
	if metricsAddr != "" {
		flags["metrics_addr"] = metricsAddr
	}
	if otelEndpoint != "" {
		flags["otel_endpoint"] = otelEndpoint
	}
	if otelService != "" {
		flags["otel_service"] = otelService
	}
	flags["more_specific"] = moreSpecific
	flags["less_specific"] = lessSpecific
	flags["pretty"] = pretty
	flags["raw"] = raw
	flags["otel_insecure"] = otelInsecure

	cfg.MergeWithFlags(flags)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize telemetry
	shutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.OTELService, cfg.OTELInsecure)
	if err != nil {
		log.Warnw("otel init failed", "err", err)
	} else {
		defer shutdown(context.Background())
	}

	// Initialize health handler
	healthHandler := health.NewHandler(log)
	healthHandler.SetMetadata("client", cfg.Client)
	healthHandler.SetMetadata("host", cfg.Host)
	healthHandler.SetMetadata("version", version)

	// Start metrics and health server
	if cfg.MetricsAddr != "" {
		go metrics.ServeWithHealth(cfg.MetricsAddr, healthHandler, log)
		log.Infow("metrics and health server started", "addr", cfg.MetricsAddr)
	}

	// Element output
	writer, err := output.NewStdoutWriter(cfg.Format, cfg.Pretty)
	if err != nil {
		log.Fatalw("output init", "err", err)
	}

	// Optional redis element sink
	var sink *queue.RedisSink
	if cfg.RedisAddr != "" {
		sink, err = queue.NewRedis(cfg.RedisAddr, cfg.RedisKey)
		if err != nil {
			log.Fatalw("redis init", "err", err)
		}
		defer sink.Close()
		log.Infow("redis sink enabled", "addr", cfg.RedisAddr, "key", cfg.RedisKey)
		healthHandler.RegisterChecker("redis", health.NewRedisChecker(cfg.RedisAddr, sink.Ping))
	}

	// Optional ingest emitter
	var batches chan []decode.Element
	var emitter *emit.Emitter
	if cfg.Ingest != "" {
		batches = make(chan []decode.Element, 1024)
		emitter = emit.NewEmitter(
			cfg.Ingest,
			cfg.Client,
			cfg.BatchMax,
			time.Duration(cfg.BatchFlushSec)*time.Second,
			cfg.SpoolDir,
			cfg.MTLSCert,
			cfg.MTLSKey,
			cfg.MTLSCA,
		)
		go emitter.Run(ctx, batches, log)
		log.Infow("ingest emitter enabled", "endpoint", cfg.Ingest)
	}

	// Stream client
	sc, err := stream.New(cfg.URL, cfg.Client, log)
	if err != nil {
		log.Fatalw("stream init", "err", err)
	}
	healthHandler.RegisterChecker("stream", health.NewStreamChecker(sc.Connected, sc.LastMessage, 5*time.Minute))

	sub := subscribe.Subscription{
		Host:         cfg.Host,
		Type:         cfg.MsgType,
		Require:      cfg.Require,
		Peer:         cfg.Peer,
		Prefix:       cfg.Prefix,
		Path:         cfg.Path,
		MoreSpecific: cfg.MoreSpecific,
		LessSpecific: cfg.LessSpecific,
	}

	// Periodic stream summary
	tracker := stats.New(15 * time.Minute)
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s := tracker.Snapshot()
				log.Infow("stream summary",
					"announces", s.Announces,
					"withdraws", s.Withdraws,
					"peer_states", s.PeerStates,
					"unique_prefixes", s.UniquePrefixes,
					"unique_peers", s.UniquePeers,
					"uptime", s.Uptime.Round(time.Second),
				)
			}
		}
	}()

	log.Infow("starting rislive",
		"url", cfg.URL,
		"host", cfg.Host,
		"client", cfg.Client,
		"config_file", configFile,
	)

	// Mark service as ready
	healthHandler.SetReady(true)

	handler := feed.New(cfg.Raw, cfg.WantAnnouncements(), cfg.WantWithdrawals(), writer, sink, batches, tracker, log)
	if err := sc.Run(ctx, sub, func(raw string) { handler.Handle(ctx, raw) }); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("stream terminated", "err", err)
	}

	if err := writer.Flush(); err != nil {
		log.Warnw("flush output", "err", err)
	}
	if emitter != nil {
		emitter.Drain(log)
	}
	log.Infow("shutdown complete")
}
