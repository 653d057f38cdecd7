package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// DefaultModelDir holds downloaded models unless NEXUS_MODEL_DIR is set.
const DefaultModelDir = "./models"

// ModelDir returns the directory models are cached in.
func ModelDir() string {
	if dir := os.Getenv("NEXUS_MODEL_DIR"); dir != "" {
		return dir
	}
	return DefaultModelDir
}

// PrepareModel downloads the model if it doesn't exist and returns the model path.
// onnxFilePath selects a specific ONNX file inside the repository when the
// model ships more than one.
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	modelDir := ModelDir()
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))

	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	downloadOptions := hugot.NewDownloadOptions()
	if onnxFilePath != "" {
		downloadOptions.OnnxFilePath = onnxFilePath
	}
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}

	return downloadedPath, nil
}
