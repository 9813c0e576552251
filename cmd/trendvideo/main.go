// Package main provides the entry point for trend video generation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ehking/social-admin/internal/bootstrap"
	"github.com/ehking/social-admin/internal/config"
	"github.com/ehking/social-admin/internal/trending"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		caption     = flag.String("caption", "Now trending: {track}", "caption template; {track} expands to the track display name")
		output      = flag.String("output", "", "optional local copy destination for the rendered video")
		translate   = flag.Bool("translate", true, "translate the caption with the configured translator")
		jobName     = flag.String("job-name", "", "override the registered media name")
		trackIndex  = flag.Int("track", 0, "index into the trending chart of the track to render")
		listTracks  = flag.Bool("list", false, "print the trending chart and exit")
		serializeTo = flag.String("serialize", "", "write the fetched chart as JSON to this path")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting trend video generation",
		slog.String("feed_country", cfg.FeedCountry),
		slog.Int("feed_limit", cfg.FeedLimit),
		slog.Int("preview_max_concurrency", cfg.PreviewMaxConcurrency),
		slog.String("caption_translator", cfg.CaptionTranslator),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	tracks, err := deps.FeedClient.FetchTrendingTracks(ctx, cfg.FeedCountry, cfg.FeedLimit)
	if err != nil {
		return fmt.Errorf("fetch trending tracks: %w", err)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("trending chart for %q is empty", cfg.FeedCountry)
	}

	if *serializeTo != "" {
		if err := trending.SerializeTracks(tracks, *serializeTo); err != nil {
			return err
		}
		logger.Info("serialized trending chart", slog.String("path", *serializeTo))
	}

	if *listTracks {
		for i, track := range tracks {
			fmt.Printf("%2d  %s\n", i, track.DisplayName())
		}
		return nil
	}

	if *trackIndex < 0 || *trackIndex >= len(tracks) {
		return fmt.Errorf("track index %d out of range (chart has %d tracks)", *trackIndex, len(tracks))
	}
	track := tracks[*trackIndex]

	pipeline, err := deps.NewPipeline(cfg, cfg.FontPath, logger)
	if err != nil {
		return err
	}

	media, err := pipeline.Generate(ctx, trending.GenerateInput{
		Track:           track,
		CaptionTemplate: *caption,
		OutputPath:      *output,
		Translate:       *translate,
		JobName:         *jobName,
	})
	if err != nil {
		return fmt.Errorf("generate trend video: %w", err)
	}

	logger.Info("trend video generated",
		slog.String("track", track.DisplayName()),
		slog.String("storage_key", media.StorageKey),
		slog.String("storage_url", media.StorageURL),
		slog.Int64("job_media_id", media.JobMediaID),
		slog.String("local_path", media.LocalPath),
		slog.String("log_path", media.LogPath),
	)
	return nil
}
