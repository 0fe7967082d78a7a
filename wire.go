package main

import (
	"fmt"

	"github.com/chaos-io/removebg/config"
	"github.com/chaos-io/removebg/isolate"
	"github.com/chaos-io/removebg/keying"
	"github.com/chaos-io/removebg/pipeline"
	"github.com/chaos-io/removebg/sink"
)

func newKeyer(cfg *config.Config) *keying.Keyer {
	k := cfg.Keying
	keyer := &keying.Keyer{
		Thresholds: keying.Thresholds{
			MagentaMinRB:      k.MagentaMinRB,
			MagentaMaxG:       k.MagentaMaxG,
			HardCutMinRB:      k.HardCutMinRB,
			HardCutMaxG:       k.HardCutMaxG,
			HardCutBalance:    k.HardCutBalance,
			DespillOffset:     k.DespillOffset,
			FallbackTolerance: k.FallbackTolerance,
		},
		Detector: keying.CornerDetector{},
		Workers:  k.Workers,
	}
	if k.Detector == "border" {
		keyer.Detector = keying.BorderDetector{Width: k.BorderWidth}
	}
	return keyer
}

func newIsolator(cfg *config.Config) isolate.Isolator {
	if cfg.Isolation.Provider == "none" {
		return isolate.NewPassthrough()
	}
	return isolate.NewGemini(cfg.Isolation.APIKey,
		isolate.WithModel(cfg.Isolation.Model),
		isolate.WithEndpoint(cfg.Isolation.Endpoint),
		isolate.WithTimeout(cfg.IsolationTimeout()),
	)
}

func newPipeline(cfg *config.Config) *pipeline.Pipeline {
	p := pipeline.New(newIsolator(cfg))
	p.Keyer = newKeyer(cfg)
	p.MaxInputSize = cfg.Isolation.MaxInputSize
	return p
}

func newSink(cfg *config.Config) (sink.Sink, error) {
	switch cfg.Export.Sink {
	case "azure":
		return sink.NewAzureBlobSink(cfg.Azure.ConnectionString, cfg.Azure.Container)
	case "file":
		return sink.NewFileSink(cfg.Export.Dir), nil
	default:
		return nil, fmt.Errorf("unsupported export sink %q", cfg.Export.Sink)
	}
}
