package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lokipool/internal/console"
	"lokipool/internal/relay"
	"lokipool/internal/shared/config"
	"lokipool/internal/shared/logger"
	"lokipool/proxypool"
	"lokipool/proxypool/prober"
	"lokipool/proxypool/scraper"
	"lokipool/proxypool/storage"
)

const logo = `
██╗      ██████╗ ██╗  ██╗██╗██████╗  ██████╗  ██████╗ ██╗
██║     ██╔═══██╗██║ ██╔╝██║██╔══██╗██╔═══██╗██╔═══██╗██║
██║     ██║   ██║█████╔╝ ██║██████╔╝██║   ██║██║   ██║██║
██║     ██║   ██║██╔═██╗ ██║██╔═══╝ ██║   ██║██║   ██║██║
███████╗╚██████╔╝██║  ██╗██║██║     ╚██████╔╝╚██████╔╝███████╗
╚══════╝ ╚═════╝ ╚═╝  ╚═╝╚═╝╚═╝      ╚═════╝  ╚═════╝ ╚══════╝
`

const version = "v0.2.0"

func main() {
	configPath := flag.String("config", "lokipool.ini", "Path to config file")
	flag.Parse()

	fmt.Print(logo)
	fmt.Println("A Fast and Reliable SOCKS5 Proxy Pool")
	fmt.Printf("Version: %s\n\n", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", *configPath, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	st := storage.NewFileStorage(cfg.ProxyFile)
	if err := st.Ensure(); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ProxyFile).Msg("Failed to create proxy file.")
	}

	probeTimeout := time.Duration(cfg.TestTimeout) * time.Second
	pool := proxypool.NewManager(cfg, st, prober.New(cfg.ProbeTarget, probeTimeout))

	if cfg.FofaConf.Enabled {
		pool.AddScraper(scraper.NewFofaScraper(cfg.FofaConf))
	}
	if cfg.QuakeConf.Enabled {
		pool.AddScraper(scraper.NewQuakeScraper(cfg.QuakeConf))
	}
	if cfg.HunterConf.Enabled {
		pool.AddScraper(scraper.NewHunterScraper(cfg.HunterConf))
	}
	// Free sources need no API key and keep the feed usable without one.
	pool.AddScraper(scraper.NewProxyListDownloadScraper())
	pool.AddScraper(scraper.NewKuaidailiScraper())

	addresses, err := st.Load()
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ProxyFile).Msg("Failed to read proxy file.")
	}
	pool.Ingest(addresses)

	if pool.Len() == 0 {
		logger.Info().Msg("Proxy file is empty, fetching candidates...")
		if err := pool.Refill(); err != nil {
			logger.Warn().Err(err).Msg("Candidate fetch failed, starting with an empty pool.")
		}
	}

	// Test everything once before accepting client connections.
	pool.Sweep()

	selector := proxypool.NewSelector(pool, cfg.AutoSwitch, time.Duration(cfg.SwitchInterval)*time.Second)
	if rec, ok := selector.PromoteBest(); ok {
		logger.Info().Str("address", rec.Address).Dur("latency", rec.Latency).Msg("Selected initial proxy.")
	} else {
		logger.Warn().Msg("No usable proxy; client connections will be rejected until the pool recovers.")
	}

	relaySrv := relay.New(cfg, selector)
	if err := relaySrv.Listen(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start SOCKS5 server.")
	}

	if cfg.AutoSwitch {
		logger.Info().Int("interval_seconds", cfg.SwitchInterval).Msg("Auto-switch enabled.")
	}

	pool.Start()
	go func() {
		if err := relaySrv.Serve(); err != nil {
			logger.Error().Err(err).Msg("SOCKS5 server error.")
		}
	}()

	cons := console.New(pool, selector, relaySrv)
	cons.PrintList()
	consoleDone := make(chan struct{})
	go func() {
		cons.Run()
		close(consoleDone)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("Received termination signal, shutting down...")
	case <-consoleDone:
		logger.Info().Msg("Quit requested, shutting down...")
	}

	relaySrv.Close()
	pool.Stop()
	logger.Info().Msg("Server stopped.")
}
