package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/knights-analytics/hugot"
	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/nexus/helper"
)

// DefaultEmbeddingModel is the sentence transformer used by DefaultEmbedder.
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// DefaultEmbeddingDim is the embedding size of DefaultEmbeddingModel.
const DefaultEmbeddingDim = 384

// DefaultEmbedder creates an embedder using a local sentence transformer model.
// The model is downloaded on first use.
func DefaultEmbedder() (EmbedFunc, error) {
	modelPath, err := helper.PrepareModel(DefaultEmbeddingModel, "")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return func(text string) ([]float32, error) {
		result, err := sentencePipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}

		return result.Embeddings[0], nil
	}, nil
}

// OpenAIEmbedder creates an embedder backed by the OpenAI embeddings API.
// dimensions shortens the returned vectors for models that support it,
// zero keeps the model's native size.
func OpenAIEmbedder(client *openai.Client, model string, dimensions int, timeout time.Duration) EmbedFunc {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return func(text string) ([]float32, error) {
		if client == nil {
			return nil, fmt.Errorf("openai client not configured")
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      openai.EmbeddingModel(model),
			Dimensions: dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}

		return resp.Data[0].Embedding, nil
	}
}
