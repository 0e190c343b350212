package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/bryanchriswhite/BodyStreamer/internal/api"
	"github.com/bryanchriswhite/BodyStreamer/internal/azure"
	"github.com/bryanchriswhite/BodyStreamer/internal/config"
	"github.com/bryanchriswhite/BodyStreamer/internal/device"
	"github.com/bryanchriswhite/BodyStreamer/internal/logger"
	"github.com/bryanchriswhite/BodyStreamer/internal/pipeline"
	"github.com/bryanchriswhite/BodyStreamer/internal/preview"
	"github.com/bryanchriswhite/BodyStreamer/internal/sim"
	"github.com/bryanchriswhite/BodyStreamer/internal/tracking"
	"github.com/bryanchriswhite/BodyStreamer/internal/transmit"
	"github.com/bryanchriswhite/BodyStreamer/internal/wire"
)

const (
	simulatedBodies   = 2
	simulatedInterval = 33 * time.Millisecond
	previewWidth      = 640
	previewHeight     = 480
)

// sensor is a device source that also creates its trackers.
type sensor interface {
	device.Source
	tracking.Factory
}

func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}
	if err := config.BindEnv(viper.GetViper()); err != nil {
		return nil, err
	}
	configMgr.ApplyOverrides(viper.GetViper())
	return configMgr, nil
}

func openSensor(cfg *config.Config) (sensor, error) {
	if cfg.Simulate {
		return sim.NewRig(sim.Script{
			Bodies:   sim.Crowd(simulatedBodies),
			Interval: simulatedInterval,
		}), nil
	}
	return azure.New()
}

// optional wraps a side service so that its failure is logged rather than
// ending the streaming session.
func optional(log *zerolog.Logger, name string, run func() error) func() error {
	return func() error {
		if err := run(); err != nil {
			log.Error().Err(err).Str("service", name).Msg("Service stopped, streaming continues")
		}
		return nil
	}
}

func runStream(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if save, _ := cmd.Flags().GetBool("save-config"); save {
		if err := configMgr.Save(); err != nil {
			return err
		}
		fmt.Printf("Configuration saved to %s\n", configMgr.GetConfigPath())
		return nil
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.WithComponent("main")

	fmt.Println("BodyStreamer - body tracking over UDP")
	fmt.Println("=====================================")

	settings, err := cfg.PipelineSettings()
	if err != nil {
		return err
	}
	provider, err := cfg.PositionProvider()
	if err != nil {
		return err
	}
	src, err := openSensor(cfg)
	if err != nil {
		return err
	}
	serializer, err := wire.NewSerializer(cfg.Transmit.BufferSize, cfg.Transmit.Precision)
	if err != nil {
		return err
	}
	tx, err := transmit.DialUDP(cfg.Transmit.Host, cfg.Transmit.Port)
	if err != nil {
		return err
	}
	defer tx.Close()

	ctrl, err := pipeline.New(settings, pipeline.Deps{
		Source:      src,
		Trackers:    src,
		Position:    provider,
		Serializer:  serializer,
		Transmitter: tx,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("source", src.Name()).
		Str("destination", tx.Destination()).
		Str("position", provider.Name()).
		Int("buffer_size", serializer.Capacity()).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	monitorCtx, stopMonitor := context.WithCancel(gctx)
	defer stopMonitor()

	if cfg.Monitor.Enabled {
		hub := api.NewHub()
		ctrl.AddObserver(hub)

		mjpeg := preview.NewMJPEG(80)
		pv := preview.New(preview.NewRenderer(previewWidth, previewHeight), mjpeg, cfg.Monitor.PreviewFPS)
		ctrl.AddObserver(pv)

		server := api.NewServer(ctrl, tx, configMgr, hub, mjpeg)
		g.Go(optional(log, "monitor", func() error {
			return server.Run(monitorCtx, cfg.Monitor.Port)
		}))
		g.Go(optional(log, "preview", func() error {
			return pv.Run(monitorCtx)
		}))
		log.Info().Msgf("Monitor: http://localhost:%d", cfg.Monitor.Port)
	}

	fmt.Println("Press Ctrl+C to stop")

	var summary pipeline.Summary
	g.Go(func() error {
		defer stopMonitor()
		var err error
		summary, err = ctrl.Run(gctx)
		return err
	})

	err = g.Wait()

	var startupErr *pipeline.StartupError
	if errors.As(err, &startupErr) {
		log.Error().Str("stage", startupErr.Stage).Err(startupErr.Err).Msg("Body tracking failed to start")
		return err
	}
	if err != nil {
		return err
	}

	ev := log.Info()
	if summary.Fault != nil {
		ev = log.Error().Err(summary.Fault)
	}
	ev.Str("session", summary.Session).
		Uint64("frames", summary.Stats.Frames).
		Uint64("datagrams", summary.Stats.Datagrams).
		Uint64("send_failed", summary.Stats.SendFailed).
		Uint64("truncated", summary.Stats.Truncated).
		Dur("duration", summary.Duration).
		Msg("Session summary")
	return nil
}
