package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"camwall/internal/camera"
	"camwall/internal/hls"
	"camwall/internal/platform/clock"
	"camwall/internal/platform/config"
	"camwall/internal/platform/logger"
	"camwall/internal/platform/loop"
	"camwall/internal/playback"
	"camwall/internal/wall"

	"github.com/spf13/cobra"
)

// probeID names the session when a raw stream URL is probed.
const probeID = "probe"

// ErrProbeFailed is returned when the probed stream never reaches playback.
var ErrProbeFailed = errors.New("stream did not start")

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var backendURL string
	var playerConfig string
	var timeout time.Duration
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "probe [camera-id|url]",
		Short: "Play a single stream headlessly and report its renditions",
		Long: `Runs one playback session against a camera from the backend list, or against a raw ` +
			`HLS manifest URL, until playback is confirmed or the session fails. Uses the same retry ` +
			`and recovery policy as the wall.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			_ = config.Load(envFile)

			format := "text"
			if logJSON {
				format = "json"
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), config.GetEnv("LOG_LEVEL", "info"), format)

			if backendURL == "" {
				backendURL = config.GetEnv("BACKEND_URL", "http://localhost:8000")
			}
			if playerConfig == "" {
				playerConfig = config.GetEnv("PLAYER_CONFIG", "")
			}
			opts, err := loadPlayerOptions(playerConfig)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			p := prober{backendURL: backendURL, player: opts, engine: hls.DefaultOptions(), log: log}
			return p.run(ctx, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend", "", "Camera backend URL (default $BACKEND_URL)")
	cmd.Flags().StringVar(&playerConfig, "player-config", "", "Player options YAML file (default $PLAYER_CONFIG)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up after this long")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

type prober struct {
	backendURL string
	player     playback.Options
	engine     hls.Options
	log        *slog.Logger
}

// run plays target until it is revealed or fails, then prints a summary to out.
func (p prober) run(ctx context.Context, target string, out io.Writer) error {
	cam, client, err := p.resolve(ctx, target)
	if err != nil {
		return err
	}

	lp := loop.New(0)
	clk := clock.New(lp.Post)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- lp.Run(loopCtx) }()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	done := make(chan playback.Event, 1)
	reg, err := playback.NewRegistry(p.player, playback.Deps{
		Clock:    clk,
		Engines:  hls.NewFactory(lp.Post, p.engine, p.log),
		Surfaces: wall.NewSurfaces(clk, p.engine.FrameRate),
		URLs:     client,
		Logger:   p.log,
		Observer: func(e playback.Event) {
			switch e.Kind {
			case playback.EventRevealed, playback.EventFailed:
				select {
				case done <- e:
				default:
				}
			}
		},
	})
	if err != nil {
		return err
	}

	p.log.Info("probing stream", "camera_id", cam.ID, "url", client.StreamURL(cam))
	if err := lp.Do(ctx, func() { reg.SetCameras([]camera.Descriptor{cam}) }); err != nil {
		return err
	}

	var final playback.Event
	select {
	case final = <-done:
	case <-ctx.Done():
	}

	var info playback.Info
	teardown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = lp.Do(teardown, func() {
		if s, ok := reg.Session(cam.ID); ok {
			info = s.Info()
		}
		reg.TeardownAll()
	})
	if err != nil {
		return err
	}

	printProbe(out, info, final)

	switch {
	case final.Kind == playback.EventRevealed:
		return nil
	case final.Kind == playback.EventFailed:
		return fmt.Errorf("probe %s: %w: %s", cam.ID, ErrProbeFailed, final.Reason)
	default:
		return fmt.Errorf("probe %s: %w: %w", cam.ID, ErrProbeFailed, ctx.Err())
	}
}

// resolve turns target into a descriptor. Absolute http(s) URLs are probed
// directly; anything else is looked up in the backend camera list.
func (p prober) resolve(ctx context.Context, target string) (camera.Descriptor, *camera.Client, error) {
	if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		client, err := camera.NewClient(u.Scheme+"://"+u.Host, camera.DefaultClientOptions(), p.log)
		if err != nil {
			return camera.Descriptor{}, nil, err
		}
		return camera.Descriptor{ID: probeID, DisplayName: target, StreamURLTemplate: target}, client, nil
	}

	client, err := camera.NewClient(p.backendURL, camera.DefaultClientOptions(), p.log)
	if err != nil {
		return camera.Descriptor{}, nil, err
	}
	list, err := client.List(ctx)
	if err != nil {
		return camera.Descriptor{}, nil, err
	}
	for _, d := range list {
		if d.ID == target {
			return d, client, nil
		}
	}
	return camera.Descriptor{}, nil, fmt.Errorf("probe %q: %w", target, playback.ErrUnknownCamera)
}

func printProbe(out io.Writer, info playback.Info, final playback.Event) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "camera\t%s\n", info.CameraID)
	fmt.Fprintf(tw, "state\t%s\n", info.State)
	fmt.Fprintf(tw, "attempts\t%d\n", info.Attempts)
	if final.Kind == playback.EventRevealed {
		fmt.Fprintf(tw, "revealed\t%s\n", revealKind(final.Forced))
	}
	if info.LastReason != "" {
		fmt.Fprintf(tw, "reason\t%s\n", info.LastReason)
	}
	for _, l := range info.Levels {
		marker := ""
		if l.Index == info.CurrentLevel {
			marker = " *"
		}
		fmt.Fprintf(tw, "level %d\t%s%s\n", l.Index, levelLabel(l), marker)
	}
	_ = tw.Flush()
}

func revealKind(forced bool) string {
	if forced {
		return "forced"
	}
	return "confirmed"
}

// levelLabel describes a level. Media-only manifests carry no bandwidth.
func levelLabel(l playback.Level) string {
	parts := []string{"unknown bandwidth"}
	if l.Bandwidth > 0 {
		parts[0] = fmt.Sprintf("%d kbps", l.Bandwidth/1000)
	}
	if l.Width > 0 && l.Height > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", l.Width, l.Height))
	}
	return strings.Join(parts, " ")
}
