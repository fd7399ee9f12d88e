package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/cognitive.radar/internal/messages"
	"github.com/banshee-data/cognitive.radar/internal/orchestrator"
	"github.com/banshee-data/cognitive.radar/internal/statusserver"
	"github.com/banshee-data/cognitive.radar/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cognitive-radar",
		Short:         "Closed-loop cognitive radar core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newStatusOnceCmd(), newVersionCmd())
	return root
}

func addCommonFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "tuning file (.json, .yaml or .yml); built-in defaults when empty")
	f.StringVar(&o.dbPath, "db", "", "SQLite decision journal path; disabled when empty")
	f.StringVar(&o.logLevel, "log-level", "ops", "log streams to enable: ops, diag, trace or none")
	f.StringVar(&o.sensorID, "sensor-id", "", "sensor id; random when empty")
	f.StringVar(&o.effectorID, "effector-id", "", "effector id; random when empty")
	f.Uint64Var(&o.seed, "seed", 1, "synthetic scene seed")
	f.BoolVar(&o.static, "static", false, "disable the cognitive engine and run static defaults")
}

func newRunCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sensor and effector loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runLoop(ctx, o, cmd.ErrOrStderr())
		},
	}
	addCommonFlags(cmd, &o)
	f := cmd.Flags()
	f.Uint64Var(&o.frames, "frames", 0, "stop after this many frames; 0 runs until interrupted")
	f.DurationVar(&o.tick, "tick", 0, "wall-clock frame period; defaults to frame_interval")
	f.StringVar(&o.natsURL, "nats", "", "NATS server URL to mirror envelopes to; disabled when empty")
	f.StringVar(&o.natsEncoding, "nats-encoding", "json", "NATS body encoding: json or proto")
	f.StringVar(&o.listen, "listen", ":8090", "HTTP status address; disabled when empty")
	f.StringVar(&o.grpcListen, "grpc-listen", ":8091", "gRPC health address; disabled when empty")
	return cmd
}

func runLoop(ctx context.Context, o options, logOut io.Writer) error {
	s, err := buildStack(ctx, o, logOut)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return s.runner(o).Run(gctx)
	})
	if o.listen != "" || o.grpcListen != "" {
		var journal statusserver.AdaptationLog
		if s.journal != nil {
			journal = s.journal
		}
		srv := statusserver.New(s.sensor, s.metrics, journal)
		g.Go(func() error {
			return srv.Serve(gctx, o.listen, o.grpcListen, time.Second)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(logOut, summary(s.sensor.StatusReport()))
	return nil
}

func newStatusOnceCmd() *cobra.Command {
	var (
		o      options
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "status-once",
		Short: "Run a short headless burst and print the status report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.frames == 0 {
				return fmt.Errorf("--frames must be > 0")
			}
			s, err := buildStack(cmd.Context(), o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.runner(o).Run(cmd.Context()); err != nil {
				return err
			}
			st := s.sensor.StatusReport()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), summary(st))
			return err
		},
	}
	addCommonFlags(cmd, &o)
	f := cmd.Flags()
	f.Uint64Var(&o.frames, "frames", 20, "frames to run")
	f.DurationVar(&o.tick, "tick", time.Millisecond, "wall-clock frame period")
	f.BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}

// summary renders a status report for operators.
func summary(st orchestrator.Status) string {
	out := fmt.Sprintf("sensor %s (%s): %s frames, %s ok, %s failed, health %s%%\n",
		st.SensorID, st.Mode,
		humanize.Comma(int64(st.Frames)), humanize.Comma(int64(st.FramesOK)), humanize.Comma(int64(st.FramesFailed)),
		humanize.FormatFloat("#,###.", st.SensorHealth*100))
	out += fmt.Sprintf("tracks: %d confirmed, %d coasting, %d provisional\n",
		st.Tracks.Confirmed, st.Tracks.Coasting, st.Tracks.Provisional)
	if sa := st.LastSituation; sa != nil {
		out += fmt.Sprintf("scene %s: clutter %.2f, confidence %.2f, stability %.2f, snr %.1f dB\n",
			sa.SceneType, sa.ClutterRatio, sa.MeanClassificationConfidence, sa.MeanTrackStability, sa.EstimatedSNRdB)
	}
	if cmd := st.LastAdaptation; cmd != nil {
		params := append([]messages.Parameter(nil), messages.Parameters...)
		sort.Slice(params, func(i, j int) bool { return params[i] < params[j] })
		for _, p := range params {
			out += fmt.Sprintf("  %-18s %.3f  %s\n", p, cmd.Scale(p), cmd.Reasoning[p])
		}
	}
	if fb := st.LastFeedback; fb != nil {
		out += fmt.Sprintf("feedback frame %d: %d countermeasures, effectiveness %.2f\n",
			fb.FrameID, len(fb.Countermeasures), fb.OverallEffectiveness)
	}
	out += fmt.Sprintf("bus: intelligence %s published / %s dropped, feedback %s published / %s dropped",
		humanize.Comma(int64(st.Bus.Intelligence.Published)), humanize.Comma(int64(st.Bus.Intelligence.Dropped)),
		humanize.Comma(int64(st.Bus.Feedback.Published)), humanize.Comma(int64(st.Bus.Feedback.Dropped)))
	return out
}
