/*
File: main.go
Version: 1.0.0
Description: Command line entry point: run the guard service or classify a single URL.
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/miekg/dns"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 5 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "urlguard"
	app.Version = "1.0.0"
	app.Usage = "Heuristic phishing and malware URL classifier"
	app.Commands = []*cli.Command{
		{
			Name:    "serve",
			Aliases: []string{"s"},
			Usage:   "run the guard API (and optional DNS sinkhole)",
			Action:  runServe,
			Flags:   configFlags(),
		},
		{
			Name:      "check",
			Aliases:   []string{"c"},
			Usage:     "classify a URL and print the verdict",
			ArgsUsage: "<url>",
			Action:    runCheck,
			Flags:     configFlags(),
		},
		{
			Name:      "features",
			Aliases:   []string{"f"},
			Usage:     "print raw and normalized features for a URL",
			ArgsUsage: "<url>",
			Action:    runFeatures,
			Flags:     configFlags(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML config",
			EnvVars: []string{"URLGUARD_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "override logging.level",
		},
	}
}

func loadCLIConfig(c *cli.Context) (*Config, error) {
	cfg := DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := InitLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}

// loadClassifier blocks until the startup model load settles.
func loadClassifier(ctx context.Context, cfg *Config) (*Classifier, error) {
	handle := NewClassifierHandle()
	handle.Load(ctx, cfg.Model)
	if err := handle.Wait(ctx); err != nil {
		return nil, err
	}
	c := handle.Current()
	if !c.IsReady() {
		return nil, errors.New(errModelNotReady)
	}
	return c, nil
}

func urlArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit("expected exactly one URL argument", 2)
	}
	return c.Args().First(), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCheck(c *cli.Context) error {
	rawURL, err := urlArg(c)
	if err != nil {
		return err
	}
	cfg, err := loadCLIConfig(c)
	if err != nil {
		return err
	}
	defer ShutdownLogger()

	classifier, err := loadClassifier(c.Context, cfg)
	if err != nil {
		return err
	}
	v := classifier.Predict(rawURL)
	return printJSON(struct {
		Verdict
		Action GuardAction `json:"action"`
	}{v, DecideAction(v, cfg.Guard.BlockThreshold, cfg.Guard.WarnThreshold)})
}

func runFeatures(c *cli.Context) error {
	rawURL, err := urlArg(c)
	if err != nil {
		return err
	}
	cfg, err := loadCLIConfig(c)
	if err != nil {
		return err
	}
	defer ShutdownLogger()

	classifier, err := loadClassifier(c.Context, cfg)
	if err != nil {
		return err
	}
	report, err := classifier.InspectFeatures(rawURL)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runServe(c *cli.Context) error {
	cfg, err := loadCLIConfig(c)
	if err != nil {
		return err
	}
	defer ShutdownLogger()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle := NewClassifierHandle()
	handle.Load(ctx, cfg.Model)

	rules := NewBlockRuleTable(cfg.Guard.parsedRuleTTL, cfg.Guard.MaxRules)
	history := NewBlockHistory(cfg.Guard.HistorySize, cfg.Guard.StateFile)
	if err := history.Load(); err != nil {
		LogWarn("[HISTORY] Could not load state from %s: %v", cfg.Guard.StateFile, err)
	} else if n := history.Len(); n > 0 {
		LogInfo("[HISTORY] Restored %d blocked entries", n)
	}

	lists, err := LoadDomainLists(cfg.Guard)
	if err != nil {
		return err
	}

	hub := NewEventHub()
	checker := NewChecker(handle, rules, history, hub, lists, cfg.Guard)
	limiter := NewLimiter(cfg.RateLimit)

	var bg sync.WaitGroup
	bg.Add(3)
	go func() { defer bg.Done(); rules.StartCleanupRoutine(ctx, cfg.Guard.parsedCleanupInterval) }()
	go func() { defer bg.Done(); limiter.StartCleanupRoutine(ctx) }()
	go func() { defer bg.Done(); history.StartPersistence(ctx, cfg.Guard.parsedSaveInterval) }()

	api := newAPIServer(cfg, checker, handle, rules, history, hub, limiter)

	var dnsHandler dns.Handler
	if cfg.DNS.Enabled {
		dnsHandler = NewDNSGuard(cfg.DNS, checker, rules, api.acl, limiter)
	}

	var wg sync.WaitGroup
	servers, err := startServers(&wg, cfg, api.routes(cfg.Server.RobotsTxt), dnsHandler)
	if err != nil {
		stop()
		shutdownServers(servers, shutdownTimeout)
		wg.Wait()
		bg.Wait()
		return err
	}

	<-ctx.Done()
	LogInfo("Shutting down %d servers...", len(servers))
	shutdownServers(servers, shutdownTimeout)
	wg.Wait()
	bg.Wait()
	LogInfo("Shutdown complete")
	return nil
}
