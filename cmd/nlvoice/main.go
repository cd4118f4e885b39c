// nlvoice - voice assistant front end for an NLWeb knowledge service.
//
// Usage:
//
//	nlvoice [flags] [interactive]        wake-word conversation on stdin
//	nlvoice [flags] ask <question...>    answer one question and exit
//	nlvoice [flags] test [quick|full|debug]
//	nlvoice [flags] serve                dashboard and HTTP API only
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/nlweb-voice/internal/config"
	"github.com/teslashibe/nlweb-voice/internal/log"
)

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nlvoice: %v\n", err)
		os.Exit(1)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "nlvoice: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("nlvoice")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := build(ctx, cfg, log.L(), os.Stdout)
	if err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	run, args := parseMode(flag.Args())
	switch run {
	case modeInteractive:
		err = a.runInteractive(ctx, os.Stdin)
	case modeAsk:
		err = a.runAsk(ctx, os.Stdout, strings.Join(args, " "))
	case modeTest:
		set := "full"
		if len(args) > 0 {
			set = args[0]
		}
		err = a.runTest(ctx, set)
	case modeServe:
		err = a.runServe(ctx)
	default:
		err = fmt.Errorf("unknown mode %q (want interactive, ask, test or serve)", run)
	}
	if err != nil {
		logger.Error("nlvoice failed", "mode", run, "error", err)
		os.Exit(1)
	}
	logger.Info("program finished")
}

// flagOptions are command-line overrides applied after the config is loaded.
type flagOptions struct {
	configPath string
	logLevel   string
	baseURL    string
	wakeWord   string
	cache      string
	speak      string
	webPort    string
	web        bool
	set        map[string]bool
}

// parseFlags parses command line flags.
func parseFlags() flagOptions {
	var o flagOptions
	flag.StringVar(&o.configPath, "config", "nlvoice.yaml", "Path to an optional YAML config file")
	flag.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&o.baseURL, "nlweb-url", "", "NLWeb base URL (overrides NLWEB_URL)")
	flag.StringVar(&o.wakeWord, "wake-word", "", "Word that starts a conversation")
	flag.StringVar(&o.cache, "cache", "", "Answer cache backend: none, memory, redis")
	flag.StringVar(&o.speak, "speak-command", "", "External TTS command, e.g. \"say\" or \"espeak\"")
	flag.StringVar(&o.webPort, "web-port", "", "Dashboard port")
	flag.BoolVar(&o.web, "web", false, "Serve the dashboard alongside interactive mode")
	flag.Parse()

	o.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o
}

// apply copies explicitly set flags onto cfg.
func (o flagOptions) apply(cfg *config.Config) {
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.baseURL != "" {
		cfg.NLWeb.BaseURL = strings.TrimSuffix(o.baseURL, "/")
	}
	if o.wakeWord != "" {
		cfg.Conversation.WakeWord = o.wakeWord
	}
	if o.cache != "" {
		cfg.Cache.Backend = o.cache
	}
	if o.speak != "" {
		cfg.Conversation.SpeakCommand = o.speak
	}
	if o.webPort != "" {
		cfg.Web.Port = o.webPort
	}
	if o.set["web"] {
		cfg.Web.Enabled = o.web
	}
}

type mode string

const (
	modeInteractive mode = "interactive"
	modeAsk         mode = "ask"
	modeTest        mode = "test"
	modeServe       mode = "serve"
)

// parseMode splits positional arguments into the mode and its arguments.
func parseMode(args []string) (mode, []string) {
	if len(args) == 0 {
		return modeInteractive, nil
	}
	return mode(strings.ToLower(args[0])), args[1:]
}
