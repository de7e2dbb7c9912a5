// Command loralink runs a telemetry link node (tx/rx), or drives the
// offline phase0/phase1/bamsweep calibration experiments against a mock
// radio link.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/apex/log"

	"github.com/chirpchirp/loralink/experiments"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: loralink <run|phase0|phase1|bamsweep> [flags]")
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runCmd(args)
	case "phase0":
		err = phase0Cmd(args)
	case "phase1":
		err = phase1Cmd(args)
	case "bamsweep":
		err = bamsweepCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "loralink: unknown command %q\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Fatal(cmd)
	}
}

func phase0Cmd(args []string) error {
	fs := flag.NewFlagSet("phase0", flag.ExitOnError)
	specPath := fs.String("spec", "", "path to a phase0 sweep spec (JSON or YAML)")
	outPath := fs.String("out", "", "write the sweep result JSON here (default: print)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *specPath == "" {
		return fmt.Errorf("phase0: -spec is required")
	}

	var spec experiments.SweepSpec
	if err := experiments.LoadSpecFile(*specPath, &spec); err != nil {
		return fmt.Errorf("phase0: loading spec: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := experiments.RunPhase0Sweep(ctx, spec)
	if err != nil {
		return fmt.Errorf("phase0: %w", err)
	}
	if result.Selected == nil {
		log.Warn("phase0: no profile landed in the target PDR band")
	} else {
		log.WithField("profile_id", result.Selected.ProfileID).Info("phase0: selected profile")
	}
	return emitReport(*outPath, result)
}

func phase1Cmd(args []string) error {
	fs := flag.NewFlagSet("phase1", flag.ExitOnError)
	c50Path := fs.String("c50", "", "path to a phase0 sweep result (selects the PHY/loss profile)")
	rawSpecPath := fs.String("raw-spec", "", "path to the RAW-mode run spec")
	latentSpecPath := fs.String("latent-spec", "", "path to the LATENT-mode run spec")
	outPath := fs.String("out", "", "write the A/B report JSON here (default: print)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *c50Path == "" || *rawSpecPath == "" || *latentSpecPath == "" {
		return fmt.Errorf("phase1: -c50, -raw-spec and -latent-spec are all required")
	}

	var sweep experiments.SweepResult
	if err := experiments.LoadSpecFile(*c50Path, &sweep); err != nil {
		return fmt.Errorf("phase1: loading c50 result: %w", err)
	}
	if sweep.Selected == nil {
		return fmt.Errorf("phase1: %s has no selected profile", *c50Path)
	}

	rawSpec, err := loadRunSpec(*rawSpecPath)
	if err != nil {
		return fmt.Errorf("phase1: loading raw spec: %w", err)
	}
	latentSpec, err := loadRunSpec(*latentSpecPath)
	if err != nil {
		return fmt.Errorf("phase1: loading latent spec: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := experiments.RunPhase1AB(ctx, experiments.ABSpec{
		Selected:      *sweep.Selected,
		RawRunSpec:    rawSpec,
		LatentRunSpec: latentSpec,
	})
	if err != nil {
		return fmt.Errorf("phase1: %w", err)
	}
	log.WithField("pdr_delta", report.Delta.PDR).Info("phase1: ab report ready")
	return emitReport(*outPath, report)
}

func bamsweepCmd(args []string) error {
	fs := flag.NewFlagSet("bamsweep", flag.ExitOnError)
	specPath := fs.String("spec", "", "path to a BAM sweep spec (JSON or YAML)")
	outPath := fs.String("out", "", "write the sweep result JSON here (default: print)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *specPath == "" {
		return fmt.Errorf("bamsweep: -spec is required")
	}

	var spec experiments.BAMSweepSpec
	if err := experiments.LoadSpecFile(*specPath, &spec); err != nil {
		return fmt.Errorf("bamsweep: loading spec: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := experiments.RunBAMSweep(ctx, spec)
	if err != nil {
		return fmt.Errorf("bamsweep: %w", err)
	}
	if result.Selected == nil {
		log.Warn("bamsweep: no manifest landed in the target PDR band")
	} else {
		log.WithField("point_id", result.Selected.PointID).Info("bamsweep: selected manifest")
	}
	return emitReport(*outPath, result)
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	specPath := fs.String("spec", "", "path to a run spec (JSON or YAML)")
	device := fs.String("device", "", "UART device or FIFO path this node's radio transport reads/writes")
	stepMs := fs.Int64("step-ms", 5, "scheduler tick interval in milliseconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *specPath == "" || *device == "" {
		return fmt.Errorf("run: -spec and -device are required")
	}
	return runNode(*specPath, *device, *stepMs)
}

// signalContext returns a context canceled on SIGINT, so a live
// run node stops cleanly instead of leaving its event log file dangling.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}
