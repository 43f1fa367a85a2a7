// Package main provides the entry point for the translation server. It
// exposes an OpenAI-compatible chat completions API backed by the
// Antigravity upstream, translating requests and responses in both
// directions.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/keenturbo/antigravity2api/internal/api"
	"github.com/keenturbo/antigravity2api/internal/auth/antigravity"
	"github.com/keenturbo/antigravity2api/internal/config"
	"github.com/keenturbo/antigravity2api/internal/logging"
	"github.com/keenturbo/antigravity2api/internal/runtime/executor"
	translator "github.com/keenturbo/antigravity2api/internal/translator/antigravity/openai"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// A local .env can override credential and config locations during
	// development; absence is not an error.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error, quiet)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("antigravity2api %s (%s, built %s)\n", Version, Commit, BuildDate)
		return
	}

	cfg, err := config.LoadConfigOptional(*configPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.SetupBaseLogger(cfg)
	if *logLevel != "" {
		logging.SetLogLevel(*logLevel)
	}
	if cfg.RequestLog {
		log.AddHook(logging.GlobalBuffer)
	}

	applyTranslatorSettings(cfg)

	token, err := loadCredential(cfg)
	if err != nil {
		log.Fatalf("load antigravity credential: %v", err)
	}
	if token.GetProjectID() == "" {
		log.Warn("credential has no project binding; requests will be rejected until re-login")
	}

	exec := executor.NewAntigravityExecutor(cfg, token)
	server := api.NewServer(cfg, exec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if errWatch := config.Watch(ctx, *configPath, func(updated *config.Config) {
			applyTranslatorSettings(updated)
			server.UpdateConfig(updated)
		}); errWatch != nil && ctx.Err() == nil {
			log.Warnf("config watcher stopped: %v", errWatch)
		}
	}()

	announceAddresses(cfg)
	if err = server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Info("shutdown complete")
}

// applyTranslatorSettings pushes configuration overrides into the
// translator package defaults.
func applyTranslatorSettings(cfg *config.Config) {
	if cfg.SystemInstruction != "" {
		translator.SetSystemInstruction(cfg.SystemInstruction)
	}
	defaults := translator.GenerationDefaults{
		Temperature:     0.4,
		TopP:            1.0,
		TopK:            40,
		MaxOutputTokens: 8192,
		ThinkingBudget:  32768,
	}
	g := cfg.Generation
	if g.Temperature != nil {
		defaults.Temperature = *g.Temperature
	}
	if g.TopP != nil {
		defaults.TopP = *g.TopP
	}
	if g.TopK != nil {
		defaults.TopK = *g.TopK
	}
	if g.MaxOutputTokens != nil {
		defaults.MaxOutputTokens = *g.MaxOutputTokens
	}
	if g.ThinkingBudget != nil {
		defaults.ThinkingBudget = *g.ThinkingBudget
	}
	translator.SetGenerationDefaults(defaults)
}

func loadCredential(cfg *config.Config) (*antigravity.AntigravityToken, error) {
	if cfg.AuthFile != "" {
		return antigravity.LoadAntigravityTokenFromPath(cfg.AuthFile)
	}
	return antigravity.LoadAntigravityToken()
}

// announceAddresses logs the URLs the server is reachable on, including
// non-loopback interface addresses when binding to all interfaces.
func announceAddresses(cfg *config.Config) {
	if cfg.Host != "" {
		log.Infof("serving on http://%s:%d/v1", cfg.Host, cfg.Port)
		return
	}
	log.Infof("serving on http://localhost:%d/v1", cfg.Port)
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.To4() == nil {
			continue
		}
		log.Infof("serving on http://%s:%d/v1", ipNet.IP.String(), cfg.Port)
	}
}
