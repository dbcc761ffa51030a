// Package main is a command-line entry point for the generation gateway.
// It runs a single text completion or image request and prints the result as JSON.
// With -jobs N it lists recent asynchronous jobs instead; that needs jobs.store: redis,
// since a memory journal starts empty in every process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gengateway/config"
	"gengateway/internal/app"
	"gengateway/internal/core"
	"gengateway/internal/logging"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the YAML configuration file")
	prompt := flag.String("prompt", "", "Prompt to send")
	system := flag.String("system", "", "Optional system prompt for text completions")
	model := flag.String("model", "", "Model identifier; defaults to models.text or models.image")
	image := flag.Bool("image", false, "Generate an image instead of text")
	size := flag.String("size", "", "Image size hint in WxH form, e.g. 1024x1024")
	recent := flag.Int("jobs", 0, "Print the N most recent asynchronous jobs from the redis journal and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, options{
		prompt: *prompt,
		system: *system,
		model:  *model,
		image:  *image,
		size:   *size,
		recent: *recent,
	}); err != nil {
		slog.Error("request failed", "error", err)
		stop()
		os.Exit(1)
	}
}

type options struct {
	prompt string
	system string
	model  string
	image  bool
	size   string
	recent int
}

func run(ctx context.Context, cfg *config.Config, opts options) (err error) {
	gw, err := app.New(ctx, app.Config{AppConfig: cfg})
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	defer func() {
		if shutdownErr := gw.Shutdown(context.Background()); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	if opts.recent > 0 {
		if cfg.Jobs.Store != "redis" {
			return fmt.Errorf("-jobs reads a shared journal and requires jobs.store: redis (have %q)", cfg.Jobs.Store)
		}
		recent, err := gw.Jobs().Recent(ctx, opts.recent)
		if err != nil {
			return err
		}
		return printJSON(recent)
	}

	if opts.prompt == "" {
		return fmt.Errorf("-prompt is required")
	}

	if opts.image {
		resp, err := gw.GenerateImage(ctx, opts.model, &core.ImageGenerationRequest{
			Prompt: opts.prompt,
			Size:   opts.size,
		})
		if err != nil {
			return err
		}
		return printJSON(resp)
	}

	req := &core.CompletionRequest{}
	if opts.system != "" {
		req.Messages = append(req.Messages, core.Message{Role: "system", Content: opts.system})
	}
	req.Messages = append(req.Messages, core.Message{Role: "user", Content: opts.prompt})

	resp, err := gw.Complete(ctx, opts.model, req)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
