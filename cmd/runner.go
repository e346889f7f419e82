package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/snapsong/internal/services"
	"github.com/desertthunder/snapsong/internal/shared"
	"github.com/desertthunder/snapsong/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	deps       *tasks.PipelineDeps
	closers    []io.Closer
	mu         sync.Mutex
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Deps       *tasks.PipelineDeps // Replaces the OpenAI and Spotify adapters when set
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		deps:       opts.Deps,
	}
}

// Close releases the log file, if one was opened.
func (r *Runner) Close() {
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			r.logger.Warn("failed to close", "error", err)
		}
	}
	r.closers = nil
}

// configure loads the config file, applies environment overrides and sets up logging.
//
// A missing config file is not an error: defaults and the environment still apply.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.config == nil {
		config, err := r.loadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}
	r.config.ApplyEnv(os.Getenv)

	logCfg := r.config.Log
	if file := cmd.String("log-file"); file != "" {
		logCfg.File = file
	}
	if logCfg.File != "" {
		logger, closer, err := shared.NewFileLogger(logCfg)
		if err != nil {
			return ctx, err
		}
		r.logger = logger
		r.closers = append(r.closers, closer)
	}

	level := logCfg.Level
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	if level != "" {
		if err := shared.SetLogLevel(r.logger, level); err != nil {
			return ctx, err
		}
	}

	return ctx, nil
}

func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if path == "" {
		return shared.DefaultConfig(), nil
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return shared.DefaultConfig(), nil
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	return config, nil
}

// saveTokens stores a fresh or refreshed Spotify token and persists the config when it came from a file.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// newLimiter converts a requests-per-second budget into a limiter; zero or less disables pacing.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(1, int(math.Ceil(rps))))
}

// spotifyService builds an unauthenticated client from the configured credentials.
func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	cfg := r.config.Credentials.Spotify
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret must be set in %s or the environment", shared.ErrMissingCredentials, r.configPath)
	}

	p := r.config.Pipeline
	svc, err := services.NewSpotifyService(cfg.Map(),
		services.WithSpotifyHTTPClient(r.httpClient),
		services.WithSpotifyLimiter(newLimiter(p.SpotifyRPS)),
		services.WithMarket(p.Market),
		services.WithSearchLimit(p.SearchLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	return svc, nil
}

// authenticatedSpotify builds a Spotify client from the stored token. Refreshed tokens are written back.
func (r *Runner) authenticatedSpotify(ctx context.Context) (*services.SpotifyService, error) {
	svc, err := r.spotifyService()
	if err != nil {
		return nil, err
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: no spotify token stored, run `snapsong auth` first", shared.ErrNotAuthenticated)
	}

	svc.SetTokenRefreshCallback(func(t *oauth2.Token) {
		if err := r.saveTokens(t); err != nil {
			r.logger.Warn("failed to persist refreshed spotify token", "error", err)
			return
		}
		r.logger.Debug("spotify token refreshed", "expiry", t.Expiry)
	})

	if err := svc.OAuthenticate(ctx, token); err != nil {
		return nil, err
	}
	return svc, nil
}

func (r *Runner) chatClient() (*services.ChatClient, error) {
	cfg := r.config.Credentials.OpenAI
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api_key must be set in %s or OPENAI_API_KEY", shared.ErrMissingCredentials, r.configPath)
	}
	return services.NewChatClient(services.ChatConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: r.config.Pipeline.CallTimeout.Duration,
	},
		services.WithChatHTTPClient(r.httpClient),
		services.WithChatLimiter(newLimiter(r.config.Pipeline.LLMRPS)),
	), nil
}

// pipelineDeps wires the OpenAI-backed extractor and oracle with the Spotify client.
func (r *Runner) pipelineDeps(ctx context.Context) (tasks.PipelineDeps, error) {
	if r.deps != nil {
		return *r.deps, nil
	}

	chat, err := r.chatClient()
	if err != nil {
		return tasks.PipelineDeps{}, err
	}
	spotify, err := r.authenticatedSpotify(ctx)
	if err != nil {
		return tasks.PipelineDeps{}, err
	}

	p := r.config.Pipeline
	return tasks.PipelineDeps{
		Extractor: services.NewVisionExtractor(chat, p.ExtractTokens, p.ExtractDetail),
		Searcher:  spotify,
		Oracle:    services.NewLLMOracle(chat),
		Playlists: spotify,
	}, nil
}

// pipelineOpts merges the [pipeline] config section with command flags and validates the result.
func (r *Runner) pipelineOpts(cmd *cli.Command) (tasks.PipelineOpts, error) {
	p := r.config.Pipeline
	if v := cmd.String("inbox"); v != "" {
		p.Inbox = v
	}
	if v := cmd.String("playlist"); v != "" {
		p.Playlist = v
	}
	if cmd.IsSet("workers") {
		p.Workers = cmd.Int("workers")
	}

	merged := *r.config
	merged.Pipeline = p
	if err := merged.Validate(); err != nil {
		return tasks.PipelineOpts{}, err
	}

	return tasks.PipelineOpts{
		Inbox:       p.Inbox,
		FoundDir:    p.FoundDir,
		NotFoundDir: p.NotFoundDir,
		Playlist:    p.Playlist,
		Workers:     p.Workers,
		CallTimeout: p.CallTimeout.Duration,
		DryRun:      cmd.Bool("dry-run"),
	}, nil
}

func (r *Runner) newPipeline(ctx context.Context, cmd *cli.Command) (*tasks.Pipeline, error) {
	opts, err := r.pipelineOpts(cmd)
	if err != nil {
		return nil, err
	}
	deps, err := r.pipelineDeps(ctx)
	if err != nil {
		return nil, err
	}
	return tasks.NewPipeline(deps, opts, r.logger)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain("\n"+format+"\n", args...)
}
