// Package commands implements the classify command line tool.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Brownie44l1/dept-classifier/internal/app"
	"github.com/Brownie44l1/dept-classifier/internal/config"
	"github.com/Brownie44l1/dept-classifier/internal/handlers"
	"github.com/Brownie44l1/dept-classifier/internal/logger"
	"github.com/Brownie44l1/dept-classifier/internal/model"
	"github.com/Brownie44l1/dept-classifier/internal/predict"
	"github.com/spf13/cobra"
)

// CommandHandler builds the classifier on demand for each subcommand.
type CommandHandler struct {
	// Open overrides the ONNX opener; nil uses the configured runtime.
	Open model.Opener

	configPath string
	verbose    bool
}

// NewRootCommand returns the classify command with all subcommands attached.
func NewRootCommand(h *CommandHandler) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify civic issue photos by department",
		Long: `classify runs the department classifier against local image files,
using the same model, labels and preprocessing as the HTTP server.

The configuration is read from --config, then CONFIG_PATH, then
configs/server.yaml. MODEL_PATH, LABELS_PATH and ONNXRUNTIME_LIB
override the file.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&h.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&h.verbose, "verbose", "v", false, "log debug output to stderr")

	predictCmd := &cobra.Command{
		Use:   "predict <image>",
		Short: "Predict the department for an image file",
		Args:  cobra.ExactArgs(1),
		RunE:  h.PredictCmd,
	}

	labelsCmd := &cobra.Command{
		Use:   "labels",
		Short: "List the known departments in class index order",
		Args:  cobra.NoArgs,
		RunE:  h.LabelsCmd,
	}

	rootCmd.AddCommand(predictCmd, labelsCmd)
	return rootCmd
}

// PredictCmd prints the prediction for one image as JSON. Failures print the
// same error body the server would send and exit non-zero.
func (h *CommandHandler) PredictCmd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	a, err := h.setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Service.PredictImage(cmd.Context(), data)
	if err != nil {
		var perr *predict.Error
		if errors.As(err, &perr) {
			if werr := writeJSON(cmd.OutOrStdout(), handlers.ErrorResponse{Error: perr.Title(), Detail: perr.Detail}); werr != nil {
				return werr
			}
		}
		return err
	}

	return writeJSON(cmd.OutOrStdout(), handlers.PredictionResponse{
		Department:       result.Department,
		Confidence:       result.Confidence,
		AllProbabilities: result.Probabilities,
	})
}

// LabelsCmd prints "<index>\t<department>" per line.
func (h *CommandHandler) LabelsCmd(cmd *cobra.Command, _ []string) error {
	a, err := h.setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Handle.Ready() {
		return fmt.Errorf("model not loaded: %w", a.Handle.Err())
	}

	labels := a.Handle.Labels()
	for _, i := range labels.Indices() {
		name, _ := labels.Lookup(i)
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, name)
	}
	return nil
}

func (h *CommandHandler) setup(cmd *cobra.Command) (*app.App, error) {
	root, err := app.ProjectRoot("classify")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(app.ConfigPath(h.configPath, root))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ResolvePaths(root)

	level := config.LogLevelWarning
	if h.verbose {
		level = config.LogLevelDebug
	}
	log := logger.NewConsole(cmd.ErrOrStderr(), level)

	return app.New(cfg, h.Open, log)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
