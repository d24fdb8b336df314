package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-cubism/internal/config"
	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/audio"
	"github.com/teslashibe/go-cubism/pkg/hub"
	"github.com/teslashibe/go-cubism/pkg/live2d"
	"github.com/teslashibe/go-cubism/pkg/motion"
	"github.com/teslashibe/go-cubism/pkg/web"
)

func serveCmd() *cobra.Command {
	var modelPath, port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a model and serve the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if modelPath != "" {
				cfg.Model.Path = modelPath
			}
			if port != "" {
				cfg.Server.Port = port
			}
			log.Init(cfg.Log.Level)
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model settings file or URL")
	cmd.Flags().StringVarP(&port, "port", "p", "", "control server port")
	return cmd
}

func serve(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := openOutput(ctx, cfg.Sound)
	if sp, ok := out.(*audio.Speaker); ok {
		defer sp.Close()
	}

	events := hub.New("events", nil)
	srv := web.NewServer(web.Config{Port: cfg.Server.Port, Static: cfg.Server.Static}, nil, events)

	m, err := openModel(ctx, cfg.Model.Path, live2d.Options{
		Motion:      cfg.MotionConfig(),
		Audio:       out,
		SoundVolume: cfg.Sound.Volume,
		Observers:   []motion.Observer{srv.Observer()},
	})
	if err != nil {
		return err
	}
	defer m.Destroy()
	m.OnHit(srv.PublishHit)
	srv.Attach(m)

	ticker := live2d.NewTicker(m, cfg.Render.FPS)
	go ticker.Run(ctx)

	srv.StartAsync()
	log.Info("model running", "model", m.Settings().Name, "fps", cfg.Render.FPS, "port", cfg.Server.Port)

	<-ctx.Done()
	log.Info("shutting down")
	return srv.Shutdown(5 * time.Second)
}

// openOutput picks the audio device. Without a device, or when asked to,
// it plays into a headless output paced in real time.
func openOutput(ctx context.Context, sc config.SoundConfig) audio.Output {
	if !sc.Enabled {
		return nil
	}
	rate := beep.SampleRate(sc.SampleRate)
	if !sc.Headless {
		sp, err := audio.NewSpeaker(rate, sc.Buffer)
		if err == nil {
			return sp
		}
		log.Warn("audio device unavailable, playing headless", "error", err)
	}
	h := audio.NewHeadless(rate)
	go h.Run(ctx, 20*time.Millisecond)
	return h
}
