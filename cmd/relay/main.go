package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"github.com/easelhq/easel/pkg/logger"
	"github.com/easelhq/easel/pkg/storage"
	"github.com/easelhq/easel/pkg/storage/inmemory"
	"github.com/easelhq/easel/pkg/storage/sqlite"
	"github.com/easelhq/easel/pkg/upstream"
	"github.com/easelhq/easel/relay"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	listenAddr := flag.String("listen", ":8080", "Address to listen on")
	upstreamURL := flag.String("upstream", "http://127.0.0.1:5328/fapi/generate", "Upstream generator URL")
	dbPath := flag.String("db", "", "Path to SQLite database (default: in-memory)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := logger.NewLogger(*debug)
	defer logger.Sync()

	var config relay.Config
	if *configPath != "" {
		var err error
		config, err = relay.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
	}

	// Flags override file values.
	if config.ListenAddr == "" || flagWasSet("listen") {
		config.ListenAddr = *listenAddr
	}
	if config.UpstreamURL == "" || flagWasSet("upstream") {
		config.UpstreamURL = *upstreamURL
	}
	if flagWasSet("db") {
		config.DBPath = *dbPath
	}

	logger.Info("easel relay starting",
		zap.String("listen", config.ListenAddr),
		zap.String("upstream", config.UpstreamURL),
		zap.Bool("debug", *debug),
	)

	var store storage.Store
	if config.DBPath != "" {
		var err error
		store, err = sqlite.NewDriver(context.Background(), config.DBPath)
		if err != nil {
			logger.Fatal("failed to open SQLite store", zap.Error(err))
		}
		logger.Info("using SQLite storage", zap.String("path", config.DBPath))
	} else {
		store = inmemory.NewDriver()
		logger.Info("using in-memory storage")
	}

	generator := upstream.NewClient(upstream.Config{
		URL:          config.UpstreamURL,
		SystemPrompt: config.SystemPrompt,
	})

	r, err := relay.New(config, store, generator, logger)
	if err != nil {
		logger.Fatal("failed to create relay", zap.Error(err))
	}
	defer r.Close()

	if err := r.Run(); err != nil {
		logger.Fatal("relay server failed", zap.Error(err))
	}
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
