// main package for the tts-job-service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-job-service/internal/align"
	"github.com/book-expert/tts-job-service/internal/audio"
	"github.com/book-expert/tts-job-service/internal/config"
	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/book-expert/tts-job-service/internal/fileutil"
	"github.com/book-expert/tts-job-service/internal/httpapi"
	"github.com/book-expert/tts-job-service/internal/job"
	"github.com/book-expert/tts-job-service/internal/objectstore"
	"github.com/book-expert/tts-job-service/internal/reference"
	"github.com/book-expert/tts-job-service/internal/storage"
	"github.com/book-expert/tts-job-service/internal/subtitle"
	"github.com/book-expert/tts-job-service/internal/tts"
	"github.com/book-expert/tts-job-service/internal/worker"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName       = "tts-job-service"
	bootstrapLogName  = "tts-job-service-bootstrap.log"
	serviceLogName    = "tts-job-service.log"
	subtitleTitle     = "TTS Subtitles"
	healthStorage     = "storage"
	healthSynthesis   = "synthesis"
	healthNATS        = "nats"
	errNATSDisconnect = "nats connection is not connected"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// services holds every component the transports serve from.
type services struct {
	gateway   *storage.Gateway
	synthesis *tts.HTTPClient
	runner    *job.Exclusive
}

func buildServices(ctx context.Context, cfg *config.Config, log *logger.Logger) (*services, error) {
	gateway, err := storage.New(storage.Options{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		EndpointURL:     cfg.Storage.EndpointURL,
		URLTTL:          cfg.URLTTL(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage gateway: %w", err)
	}

	if cfg.Storage.CreateLayout {
		layoutErr := gateway.EnsureLayout(ctx)
		if layoutErr != nil {
			log.Warn("Failed to create bucket layout in %s: %v", gateway.Bucket(), layoutErr)
		}
	}

	synthesisClient := tts.NewHTTPClient(cfg.Synthesis.ServiceURL, cfg.SynthesisTimeout())

	var aligner core.Aligner

	if cfg.AlignmentEnabled() {
		aligner = align.NewClient(align.Options{
			URL:      cfg.Alignment.ServiceURL,
			APIKey:   cfg.Alignment.APIKey,
			Model:    cfg.Alignment.Model,
			Language: cfg.Alignment.Language,
			Timeout:  cfg.AlignmentTimeout(),
		}, log)
	} else {
		log.Info("Alignment service not configured; timings and subtitles are disabled.")
	}

	var transcoder reference.Transcoder

	ffmpeg := audio.NewFFmpeg(cfg.Reference.FFmpegBinary)
	if ffmpeg.Available() {
		transcoder = ffmpeg
	} else {
		log.Warn("%s not found; only WAV reference audio can be decoded.", ffmpeg.Binary())
	}

	orchestrator, err := job.New(job.Dependencies{
		Store:       gateway,
		Acquirer:    reference.New(gateway, transcoder, cfg.Paths.WorkDir, log),
		Synthesizer: tts.NewInvoker(synthesisClient, log),
		Aligner:     aligner,
		Subtitles:   subtitle.NewRenderer(subtitleTitle),
	}, cfg.Paths.WorkDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create job orchestrator: %w", err)
	}

	return &services{
		gateway:   gateway,
		synthesis: synthesisClient,
		runner:    job.NewExclusive(orchestrator),
	}, nil
}

func runTransports(
	ctx context.Context,
	cfg *config.Config,
	svc *services,
	log *logger.Logger,
) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	archive, err := objectstore.New(jetstreamContext, cfg.NATS.ResultsBucket)
	if err != nil {
		return fmt.Errorf("failed to open result archive: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	natsWorker := worker.NewNatsWorker(natsConnection, cfg.NATS.JobSubject, svc.runner, archive, log)
	group.Go(func() error {
		return natsWorker.Run(groupCtx)
	})

	if cfg.HTTP.ListenAddress != "" {
		server := httpapi.New(httpapi.Dependencies{
			Runner:  svc.runner,
			Archive: archive,
			Voices:  svc.gateway,
			Checks: []httpapi.HealthCheck{
				{Name: healthStorage, Check: svc.gateway.Health},
				{Name: healthSynthesis, Check: svc.synthesis.HealthCheck},
				{Name: healthNATS, Check: func(context.Context) error {
					if !natsConnection.IsConnected() {
						return errors.New(errNATSDisconnect)
					}

					return nil
				}},
			},
		}, log)

		group.Go(func() error {
			return server.Run(groupCtx, cfg.HTTP.ListenAddress)
		})
	}

	log.System("%s ready. Listening for jobs on subject: %s", serviceName, cfg.NATS.JobSubject)

	return group.Wait()
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	dirsErr := ensureDirectories(cfg)
	if dirsErr != nil {
		bootstrapLog.Error("Failed to create directories: %v", dirsErr)

		return dirsErr
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogName)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to initialize services: %v", err)

		return err
	}

	runErr := runTransports(ctx, cfg, svc, finalLog)
	if runErr != nil {
		finalLog.Error("Service stopped with error: %v", runErr)

		return runErr
	}

	finalLog.System("%s shut down cleanly.", serviceName)

	return nil
}

func ensureDirectories(cfg *config.Config) error {
	for _, dir := range []string{cfg.Paths.BaseLogsDir, cfg.Paths.WorkDir} {
		if dir == "" {
			continue
		}

		err := fileutil.EnsureDir(dir)
		if err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
