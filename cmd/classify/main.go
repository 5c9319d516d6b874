// Command classify runs the image-classification pipeline once: it
// loads the ONNX model and label table, converts the input image to a
// tensor, executes inference and prints the winning label. The
// inference leg is tagged for the edge node and the reporting leg for
// the cloud node; the only value crossing that boundary is the result
// label, whose ownership moves with it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/edgenn/classify/internal/deployconfig"
	"github.com/edgenn/classify/internal/nn"
	"github.com/edgenn/classify/internal/pipeline"
	"github.com/edgenn/classify/internal/placement"
)

const reportExportName = "report_inference_result"

func init() {
	placement.Register(reportExportName, "cloud")
}

// reportResult is the cloud-side leg. It takes ownership of the label
// and is its final consumer.
func reportResult(label string) {
	fmt.Printf("Inference result: %s\n", label)
}

type options struct {
	modelPath    string
	labelsPath   string
	imagePath    string
	deployConfig string
	ortLibrary   string
	verbose      bool
}

func main() {
	var opts options

	root := &cobra.Command{
		Use:          "classify",
		Short:        "Classify an image with a pretrained ONNX model",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.modelPath, "model", "fixture/models/squeezenet1.1-7.onnx", "path to the ONNX model file")
	flags.StringVar(&opts.labelsPath, "labels", "fixture/labels/squeezenet1.1-7.txt", "path to the newline-delimited labels file")
	flags.StringVar(&opts.imagePath, "image", "fixture/images/dog.jpg", "path to the input image (JPEG or PNG)")
	flags.StringVar(&opts.deployConfig, "deploy-config", "", "optional deployment config to resolve function placement against")
	flags.StringVar(&opts.ortLibrary, "onnxruntime-lib", "", "override path to the onnxruntime shared library")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts options) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if opts.deployConfig != "" {
		cfg, err := deployconfig.Load(opts.deployConfig)
		if err != nil {
			logger.Error("deploy config rejected", "error", err)
			return err
		}
		logger.Info("deploy config loaded", "service", cfg.Name, "app", cfg.AppLocation())
		for _, fn := range placement.Functions() {
			nodeName, _ := placement.NodeFor(fn)
			node, ok := cfg.Node(nodeName)
			if !ok {
				err := fmt.Errorf("function %s is placed on node %q, which the deploy config does not define", fn, nodeName)
				logger.Error("placement unresolved", "error", err)
				return err
			}
			logger.Info("function placement", "function", fn, "node", nodeName, "address", node.Address)
		}
	}

	backend, err := nn.NewORTBackend(nn.ORTConfig{LibraryPath: opts.ortLibrary})
	if err != nil {
		logger.Error("backend initialization failed", "error", err)
		return err
	}
	defer backend.Close()

	result, err := pipeline.Run(backend, pipeline.Config{
		ModelPath:  opts.modelPath,
		LabelsPath: opts.labelsPath,
		ImagePath:  opts.imagePath,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("inference failed", "error", err)
		return err
	}

	// Ownership of the label crosses the placement boundary here.
	reportResult(result.Label)
	return nil
}
