package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcp2everything/PID-agent/internal/advisor"
	"github.com/mcp2everything/PID-agent/internal/channel"
	"github.com/mcp2everything/PID-agent/internal/config"
	"github.com/mcp2everything/PID-agent/internal/controller"
	"github.com/mcp2everything/PID-agent/internal/device"
	"github.com/mcp2everything/PID-agent/internal/logger"
	"github.com/mcp2everything/PID-agent/internal/optimize"
	"github.com/mcp2everything/PID-agent/internal/pidfile"
	"github.com/mcp2everything/PID-agent/internal/store"
	"github.com/mcp2everything/PID-agent/internal/telemetry"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithFile(cfg.Debug, cfg.Verbose, logger.IsService(), cfg.LogFile)
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pidfile.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pidfile.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	dev := newDevice()
	if err := dev.Open(); err != nil {
		logger.Fatal().Err(err).Msg("failed to open device")
	}
	defer dev.Close()

	adv := newAdvisor()
	orch := optimize.New(adv, time.Duration(cfg.AdvisorTimeout)*time.Second)

	var collector telemetry.Collector
	if cfg.Telemetry {
		var err error
		collector, err = telemetry.NewService(telemetry.Config{DBPath: cfg.TelemetryDB})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize telemetry")
		}
		defer collector.Close()
	}

	ctrl := controller.New(dev, store.New(cfg.Channels), orch, collector, controller.Config{
		Channels:     cfg.Channels,
		PollInterval: time.Duration(cfg.PollInterval) * time.Millisecond,
	})

	logger.Info().
		Str("port", cfg.Port).
		Int("channels", cfg.Channels).
		Int("poll_interval_ms", cfg.PollInterval).
		Msg("Starting control loop")

	if err := ctrl.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}

	logger.Info().Msg("Shutdown complete")
}

func newDevice() device.Device {
	if cfg.IsVirtual() {
		params := channel.DefaultParams()
		params.NoiseAmplitude = cfg.NoiseAmplitude
		params.IntegralLimit = cfg.IntegralLimit

		logger.Info().Int("channels", cfg.Channels).Msg("Using simulated device")
		return device.NewSimulator(cfg.Channels, params)
	}

	logger.Info().Str("port", cfg.Port).Int("baudrate", cfg.BaudRate).Msg("Using serial device")
	return device.NewSerialDevice(cfg.Port, cfg.BaudRate)
}

func newAdvisor() advisor.Advisor {
	if cfg.AdvisorURL == "" {
		logger.Info().Msg("No advisor endpoint configured, using rule-based tuning")
		return advisor.NewRule()
	}

	adv, err := advisor.NewLLM(advisor.LLMConfig{
		URL:     cfg.AdvisorURL,
		Model:   cfg.AdvisorModel,
		APIKey:  cfg.AdvisorKey(),
		Timeout: time.Duration(cfg.AdvisorTimeout) * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize advisor")
	}

	logger.Info().Str("model", cfg.AdvisorModel).Msg("Using LLM advisor")
	return adv
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
