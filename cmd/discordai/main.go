// Package main provides the CLI entry point for the Discord AI assistant.
//
// The assistant connects a Discord guild to an LLM provider (Anthropic or
// OpenAI) with a curated set of server-management tools gated by safety
// tier, per-user rate limits, and platform-aware output segmentation.
//
// # Basic Usage
//
// Start the bot:
//
//	discordai serve --config discordai.yaml
//
// Configuration values can reference environment variables with $VAR or
// ${VAR} syntax; they are expanded once at load.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/config"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/discord"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/engine"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/observability"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/prompt"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/providers"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/ratelimit"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools/guild"
	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "discordai",
		Short:        "Discord AI assistant with tiered server-management tools",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant and connect to Discord",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "discordai.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	var sink observability.Sink = logger
	if cfg.Discord.LogChannelID != "" {
		sink = observability.NewFanout(logger,
			observability.NewDiscordSink(session, cfg.Discord.LogChannelID))
	}

	registry := tools.NewRegistry()
	if err := guild.Register(registry, session); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	registry.SetCap(toolCap(cfg.Tools))

	limiter := ratelimit.NewLimiter(policySource(cfg.RateLimit))

	runner, model, err := buildRunner(cfg.Provider)
	if err != nil {
		return err
	}

	prompts := buildPrompts(cfg.Prompt)

	metricsReg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(metricsReg)

	eng := engine.New(engine.Config{
		Model:    model,
		Runner:   runner,
		Prompts:  prompts,
		Registry: registry,
		Limiter:  limiter,
		Logger:   sink,
		Metrics:  metrics,
		Options: engine.Options{
			MaxRetries:  cfg.Engine.MaxRetries,
			MaxSteps:    cfg.Engine.MaxSteps,
			Temperature: cfg.Engine.Temperature,
			MaxTokens:   cfg.Engine.MaxTokens,
		},
	})

	router, err := discord.NewRouter(discord.Config{
		Token:           cfg.Discord.Token,
		Prefix:          cfg.Discord.Prefix,
		RequiredRoleID:  cfg.Discord.RequiredRoleID,
		AllowedChannels: cfg.Discord.AllowedChannels,
		HandleTimeout:   time.Duration(cfg.Engine.HandleTimeout),
		Session:         session,
		Logger:          sink,
		Metrics:         metrics,
	}, eng)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				sink.Error(ctx, "metrics server failed", "error", err)
			}
		}()
		sink.Info(ctx, "metrics server listening", "addr", cfg.Metrics.Addr)
	}

	if err := router.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	sink.Info(ctx, "assistant started",
		"version", version,
		"provider", runner.Name(),
		"model", model)

	<-ctx.Done()
	sink.Info(context.Background(), "shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := router.Stop(shutdownCtx); err != nil {
		sink.Warn(shutdownCtx, "error stopping router", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			sink.Warn(shutdownCtx, "error stopping metrics server", "error", err)
		}
	}

	sink.Info(context.Background(), "assistant stopped")
	return nil
}

// buildRunner constructs the configured provider backend and resolves the
// model name, falling back to the provider default.
func buildRunner(cfg config.ProviderConfig) (engine.Runner, string, error) {
	switch cfg.Name {
	case "openai":
		runner, err := providers.NewOpenAIRunner(providers.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		model := cfg.Model
		if model == "" {
			model = providers.DefaultOpenAIModel
		}
		return runner, model, nil
	default:
		runner, err := providers.NewAnthropicRunner(providers.AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		model := cfg.Model
		if model == "" {
			model = providers.DefaultAnthropicModel
		}
		return runner, model, nil
	}
}

// toolCap maps the tool gate configuration to a registry cap. With admin
// bypass enabled administrators see the full catalog.
func toolCap(cfg config.ToolsConfig) tools.Cap {
	tier := cfg.CapTier()
	if !cfg.AdminBypass {
		return tools.StaticCap(tier)
	}
	return tools.CapResolver(func(ctx context.Context, req *models.Request) (tools.SafetyTier, error) {
		if req.IsAdmin {
			return tools.TierHigh, nil
		}
		return tier, nil
	})
}

// policySource maps the quota configuration to a limiter policy source,
// honoring per-user overrides when present.
func policySource(cfg config.RateLimitConfig) ratelimit.PolicySource {
	if len(cfg.PerUser) == 0 {
		return ratelimit.StaticPolicy(cfg.Default)
	}
	return ratelimit.PolicyResolver(func(ctx context.Context, userID, guildID string) (ratelimit.Policy, error) {
		if p, ok := cfg.PerUser[userID]; ok {
			return p, nil
		}
		return cfg.Default, nil
	}, cfg.Default)
}

// buildPrompts constructs the prompt assembler from configuration.
func buildPrompts(cfg config.PromptConfig) *prompt.Builder {
	builder := prompt.NewBuilder(cfg.SystemOverride, cfg.SystemOverride != "")
	for _, rule := range cfg.Rules {
		builder.AddRule(rule)
	}
	return builder
}
