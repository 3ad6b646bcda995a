// Command perseus runs the fast detector-response simulation: it loads a
// YAML run spec, wires the reconstruction pipeline, and drives the event
// loop over a particle-gun event sample.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"perseus/engine"
	"perseus/engine/configx"
	"perseus/engine/pdg"
	"perseus/engine/reader"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath     string
		seed           int64
		maxEvents      int
		metricsAddr    string
		metricsBackend string
		gunPID         int
		gunPt          float64
		gunEta         float64
		gunEvents      int
		pileUpMeanPt   float64
	)
	cmd := &cobra.Command{
		Use:          "perseus",
		Short:        "fast detector-response simulation",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := configx.Load(configPath)
			if err != nil {
				return err
			}
			cfg := engine.Defaults()
			cfg.Spec = spec
			cfg.Seed = seed
			cfg.MaxEvents = maxEvents
			cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
			cfg.PileUp = reader.SoftSampler{MeanPt: pileUpMeanPt}
			if metricsAddr != "" {
				cfg.MetricsEnabled = true
				cfg.MetricsBackend = metricsBackend
			}

			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				if h := eng.MetricsHandler(); h != nil {
					mux := http.NewServeMux()
					mux.Handle("/metrics", h)
					go func() { _ = http.ListenAndServe(metricsAddr, mux) }()
				}
			}

			// Interrupt stops after the current event.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			src := reader.NewGunReader(pdg.Default(), reader.GunConfig{
				Events: gunEvents,
				PID:    gunPID,
				Pt:     gunPt,
				Eta:    gunEta,
			})
			sum, err := eng.Run(ctx, src)
			if err != nil {
				return err
			}
			fmt.Printf("run %s: processed %d, failed %d, skipped %d in %s\n",
				sum.RunID, sum.Processed, sum.Failed, sum.Skipped, sum.Duration)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "run.yaml", "path to the YAML run spec")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed override (0 keeps the spec value)")
	cmd.Flags().IntVar(&maxEvents, "events", 0, "event limit override (0 keeps the spec value)")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "expose metrics on address (e.g. :9090)")
	cmd.Flags().StringVar(&metricsBackend, "metrics-backend", "prom", "metrics backend: prom|otel|noop")
	cmd.Flags().IntVar(&gunPID, "gun-pid", 22, "particle-gun species")
	cmd.Flags().Float64Var(&gunPt, "gun-pt", 100, "particle-gun transverse momentum in GeV")
	cmd.Flags().Float64Var(&gunEta, "gun-eta", 0.3, "particle-gun pseudorapidity")
	cmd.Flags().IntVar(&gunEvents, "gun-events", 10, "particle-gun event count")
	cmd.Flags().Float64Var(&pileUpMeanPt, "pileup-mean-pt", 0.6, "toy pile-up sampler mean pt")
	return cmd
}
