package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"

	"github.com/chirpchirp/loralink/artifacts"
	"github.com/chirpchirp/loralink/codec"
	"github.com/chirpchirp/loralink/config"
	"github.com/chirpchirp/loralink/experiments"
	"github.com/chirpchirp/loralink/radio"
	"github.com/chirpchirp/loralink/runtime"
	"github.com/chirpchirp/loralink/runtime/eventlog"
	"github.com/chirpchirp/loralink/sensing"
)

func loadRunSpec(path string) (config.RunSpec, error) {
	return config.Load(path)
}

// emitReport writes report as indented JSON to path, or to stdout when
// path is empty.
func emitReport(path string, report any) error {
	if path == "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	return experiments.WriteReport(path, report)
}

// runNode loads spec, opens device as this node's radio transport, and
// drives a TxNode or RxNode (per spec.Role) to completion.
func runNode(specPath, device string, stepMs int64) error {
	spec, err := loadRunSpec(specPath)
	if err != nil {
		return err
	}

	c, err := codec.Create(spec.Codec.ID, spec.Codec.Version, spec.Codec.Params)
	if err != nil {
		return fmt.Errorf("resolving codec: %w", err)
	}

	schemaHash := codec.PayloadSchemaHash(c.PayloadSchema())
	var manifest artifacts.Manifest
	if spec.ArtifactsManifest != "" {
		manifest, err = artifacts.Load(spec.ArtifactsManifest)
		if err != nil {
			return fmt.Errorf("loading artifacts manifest: %w", err)
		}
	} else {
		manifest = artifacts.New(c.ID(), c.Version(), schemaHash, nil, nil, time.Now())
	}
	if spec.Mode == config.ModeLatent {
		run := artifacts.RunCodecView{ID: spec.Codec.ID, Version: spec.Codec.Version}
		if err := artifacts.Verify(run, manifest, artifacts.CodecView{PayloadSchemaHash: schemaHash}); err != nil {
			return fmt.Errorf("verifying artifacts manifest: %w", err)
		}
	}

	rwc, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening device %s: %w", device, err)
	}
	transport, err := radio.NewUARTTransport(rwc, spec.MaxPayloadBytes, true)
	if err != nil {
		return fmt.Errorf("starting uart transport: %w", err)
	}
	defer transport.Close()

	clock := runtime.NewWallClock()
	logger, err := eventlog.New(spec.Logging.OutDir, spec.RunID, string(spec.Role), string(spec.Mode), spec.PhyProfileID(), clock)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer logger.Close()
	logger.LogRunStart(spec, manifest.CodecID+"@"+manifest.CodecVersion)

	ctx, cancel := signalContext()
	defer cancel()

	switch spec.Role {
	case config.RoleTX:
		sampler := sensing.NewDummySampler(spec.Window.Dims, 0)
		node := runtime.NewTxNode(spec, transport, c, logger, sampler, nil, clock)
		log.WithField("run_id", spec.RunID).Info("tx node starting")
		go func() {
			<-ctx.Done()
			node.Stop()
		}()
		if err := node.Run(ctx, stepMs); err != nil {
			return err
		}
		log.WithField("metrics", node.Metrics()).Info("tx node done")
	case config.RoleRX:
		node := runtime.NewRxNode(spec, transport, c, logger, clock, nil)
		log.WithField("run_id", spec.RunID).Info("rx node starting")
		go func() {
			<-ctx.Done()
			node.Stop()
		}()
		if err := node.Run(ctx, stepMs); err != nil {
			return err
		}
	default:
		return fmt.Errorf("run: role %q cannot be run as a node", spec.Role)
	}
	return nil
}
