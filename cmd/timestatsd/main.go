package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"

	"github.com/getsentry/timestats/internal/httputil"
	"github.com/getsentry/timestats/internal/logutil"
	"github.com/getsentry/timestats/internal/promexport"
	"github.com/getsentry/timestats/internal/replay"
	"github.com/getsentry/timestats/internal/snapshot"
	"github.com/getsentry/timestats/internal/timestats"
)

type environment struct {
	config ServiceConfig

	service  *timestats.Service
	registry *prometheus.Registry

	snapshotsWriter *kafka.Writer
	snapshotsBucket *blob.Bucket
	exporter        *snapshot.Exporter
	scheduler       *cron.Cron
}

var release string

func newEnvironment() (*environment, error) {
	var e environment
	err := cleanenv.ReadEnv(&e.config)
	if err != nil {
		return nil, err
	}

	logutil.ConfigureLogger(e.config.LogLevel)

	e.service = timestats.New(timestats.Config{})
	e.registry = prometheus.NewRegistry()
	err = e.registry.Register(promexport.NewCollector(e.service))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if e.config.BucketURL != "" {
		e.snapshotsBucket, err = blob.OpenBucket(ctx, e.config.BucketURL)
		if err != nil {
			return nil, err
		}
	}
	if len(e.config.KafkaBrokers) > 0 {
		e.snapshotsWriter = &kafka.Writer{
			Addr:         kafka.TCP(e.config.KafkaBrokers...),
			Async:        true,
			Balancer:     kafka.CRC32Balancer{},
			BatchSize:    10,
			Compression:  kafka.Lz4,
			ReadTimeout:  3 * time.Second,
			Topic:        e.config.KafkaTopic,
			WriteTimeout: 3 * time.Second,
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	e.exporter = &snapshot.Exporter{
		Source:   e.service,
		Bucket:   e.snapshotsBucket,
		Hostname: hostname,
	}
	// A nil *kafka.Writer in the interface wouldn't compare to nil.
	if e.snapshotsWriter != nil {
		e.exporter.Producer = e.snapshotsWriter
	}

	e.scheduler = cron.New()
	if e.config.ExportSchedule != "" && (e.snapshotsBucket != nil || e.snapshotsWriter != nil) {
		_, err = e.scheduler.AddFunc(e.config.ExportSchedule, e.export)
		if err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func (e *environment) export() {
	hub := sentry.CurrentHub().Clone()
	ctx := sentry.SetHubOnContext(context.Background(), hub)
	objectName, err := e.exporter.Export(ctx)
	if err != nil {
		hub.CaptureException(err)
		log.Error().Err(err).Msg("error exporting snapshot")
		return
	}
	if objectName != "" {
		log.Info().Str("object", objectName).Msg("snapshot exported")
	}
}

func (e *environment) replay(ctx context.Context) error {
	events, err := replay.ReadFile(e.config.ReplayFile)
	if err != nil {
		return err
	}
	return replay.New(e.service, nil).Run(ctx, events)
}

func (e *environment) shutdown() {
	<-e.scheduler.Stop().Done()

	var err error
	if e.snapshotsWriter != nil {
		err = multierr.Append(err, e.snapshotsWriter.Close())
	}
	if e.snapshotsBucket != nil {
		err = multierr.Append(err, e.snapshotsBucket.Close())
	}
	for _, err := range multierr.Errors(err) {
		sentry.CaptureException(err)
		log.Err(err).Msg("error shutting down environment")
	}
	sentry.Flush(5 * time.Second)
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.Handler
	}{
		{http.MethodGet, "/health", http.HandlerFunc(e.getHealth)},
		{http.MethodPost, "/timestats", http.HandlerFunc(e.postTimeStats)},
		{http.MethodPost, "/replay", http.HandlerFunc(e.postReplay)},
		{http.MethodGet, "/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})},
	}

	router := httprouter.New()

	for _, route := range routes {
		handlerFunc := httputil.DecompressPayload(route.handler)
		handler := compress(handlerFunc)

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func main() {
	env, err := newEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:                   env.config.SentryDSN,
		BeforeSendTransaction: httputil.SetHTTPStatusCodeTag,
		EnableTracing:         true,
		Environment:           env.config.Environment,
		Release:               release,
		TracesSampleRate:      1.0,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	if env.config.EnableOnStart {
		env.service.Enable()
	}

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := http.Server{
		Addr:    ":" + env.config.Port,
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if env.config.ReplayFile != "" {
		go func() {
			if err := env.replay(ctx); err != nil {
				sentry.CaptureException(err)
				log.Err(err).Str("file", env.config.ReplayFile).Msg("error replaying trace")
			}
		}()
	}

	env.scheduler.Start()

	waitForShutdown := make(chan os.Signal)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cancel()

		cctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	<-waitForShutdown

	// Shutdown the rest of the environment after the HTTP connections are closed
	env.shutdown()
}

func (e *environment) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
