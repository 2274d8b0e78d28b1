// gan-trainer adversarially trains a toy generator/discriminator pair: the
// generator learns to transform uniform noise into samples that (hopefully) look
// like they were drawn from a gaussian, and the discriminator learns to tell the
// two apart.
//
// Run it yourself, it's fun:
//
//	go run ./cmd/gan-trainer -num_epochs=50 -v=1
package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/janpfeifer/ganlab/internal/gan"
	"github.com/janpfeifer/ganlab/internal/parameters"
	"github.com/janpfeifer/ganlab/internal/samplers"
	"github.com/janpfeifer/ganlab/internal/ui/cli"
	"github.com/janpfeifer/ganlab/internal/ui/spinning"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

// Flags
var (
	flagConfig = flag.String("config", "", "Comma-separated list of key[=value] hyperparameters. "+
		"Use -config=help to list the accepted keys. Prefix keys with \"generator.\" or "+
		"\"discriminator.\" to override a hyperparameter for only one of the sub-models.")
	flagNumEpochs       = flag.Int("num_epochs", 50, "Number of training epochs.")
	flagBatchesPerEpoch = flag.Int("batches_per_epoch", 40, "Number of stage cycles (real/fake/generator) per epoch.")
	flagSampleSize      = flag.Int("sample_size", 500, "Number of scalar values per sample batch.")
	flagLearningRate    = flag.Float64("learning_rate", 0.05, "Learning rate for both sub-optimizers.")
	flagCheckpoint      = flag.String("checkpoint", "", "Directory to save/load the model. Empty means no saving.")
	flagEvalBatches     = flag.Int("eval_batches", 10, "Number of generated batches used in the final evaluation.")
	flagColor           = flag.Bool("color", true, "Use colors in the terminal output.")
)

// Globals
var (
	// globalCtx used everywhere. It is cancelled when the program is about to exit,
	// either by an interrupt (ctrl+C) or by reaching the end.
	globalCtx = context.Background()
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	// Capture Control+C.
	var globalCancel func()
	globalCtx, globalCancel = context.WithCancel(context.Background())
	spinning.SafeInterrupt(globalCancel, 5*time.Second)
	defer globalCancel()

	// Profilers: HTTP profiler server and CPU profile.
	if *flagProfiler >= 0 {
		setupHTTPProfiler()
		defer httpProfilerOnQuit()
	}
	if *flagCPUProfile != "" {
		stopCPUProfile := createCPUProfile()
		defer stopCPUProfile()
	}

	params := parameters.NewFromConfigString(*flagConfig)
	realSampler, noiseSampler := must.M2(samplers.FromParams(params))

	// Flags fill in the hyperparameters not given in -config.
	setIfAbsent(params, "batch_size", strconv.Itoa(*flagSampleSize))
	setIfAbsent(params, "learning_rate", strconv.FormatFloat(*flagLearningRate, 'g', -1, 64))
	if *flagCheckpoint != "" {
		setIfAbsent(params, "checkpoint", *flagCheckpoint)
	}

	g := must.M1(gan.New(params))
	dataset := gan.NewDataset(realSampler, noiseSampler, g.BatchSize(), *flagBatchesPerEpoch)
	trainer := gan.NewTrainer(g, dataset, *flagNumEpochs)

	reporter := cli.New(*flagColor)
	reporter.Banner(fmt.Sprintf("Adversarial training: %s vs %s", realSampler, noiseSampler))

	// Spin while an epoch trains, stop before the report prints.
	var spinner *spinning.Spinning
	trainer.OnEpochStart("spinner", 100, func(t *gan.Trainer) error {
		spinner = spinning.New(globalCtx)
		return nil
	})
	trainer.OnEpochEnd("spinner", 50, func(t *gan.Trainer) error {
		spinner.Done()
		spinner = nil
		return nil
	})
	trainer.OnEpochEnd("report", 100, func(t *gan.Trainer) error {
		reporter.EpochReport(t.Epoch, *flagNumEpochs, &t.Metrics)
		return nil
	})
	trainer.OnEpochEnd("checkpoint", 200, func(t *gan.Trainer) error {
		if *flagCheckpoint == "" {
			return nil
		}
		return g.Save()
	})

	if err := trainer.Train(globalCtx); err != nil {
		if spinner != nil {
			spinner.Done()
		}
		if globalCtx.Err() != nil {
			klog.Warningf("Training interrupted: %v", err)
			return
		}
		klog.Fatalf("Training failed: %+v", err)
	}

	// How close did the generated distribution get?
	fakeMean, fakeStdev := must.M2(g.EvaluateGenerated(globalCtx, noiseSampler, *flagEvalBatches))
	if normal, ok := realSampler.(*samplers.Normal); ok {
		reporter.FinalReport(fakeMean, fakeStdev, normal.Mean, normal.Stdev)
	} else {
		fmt.Printf("Generated distribution: mean=%.3f stdev=%.3f\n", fakeMean, fakeStdev)
	}
}

func setIfAbsent(params parameters.Params, key, value string) {
	if _, found := params[key]; !found {
		params[key] = value
	}
}
