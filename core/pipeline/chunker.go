package pipeline

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/siherrmann/nexus/model"
)

// splitSentences breaks text after '.', '!' and '?' followed by a space.
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "! ", "!|")
	text = strings.ReplaceAll(text, "? ", "?|")
	text = strings.ReplaceAll(text, ". ", ".|")

	var sentences []string
	for _, s := range strings.Split(text, "|") {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func newChunk(content string, basePath string, prefix string, index int, startPos int, metadata model.Metadata) ChunkWithPath {
	endPos := startPos + len(content)
	if metadata == nil {
		metadata = model.Metadata{}
	}
	return ChunkWithPath{
		Content:    content,
		Path:       fmt.Sprintf("%s.%s%d", basePath, prefix, index),
		StartPos:   &startPos,
		EndPos:     &endPos,
		ChunkIndex: &index,
		Metadata:   metadata,
	}
}

// SentenceChunker creates a chunker that groups maxSentencesPerChunk sentences.
func SentenceChunker(maxSentencesPerChunk int) ChunkFunc {
	return func(text string, basePath string) ([]ChunkWithPath, error) {
		if maxSentencesPerChunk <= 0 {
			return nil, fmt.Errorf("max sentences per chunk must be positive")
		}

		chunks := []ChunkWithPath{}
		sentences := splitSentences(text)
		pos := 0
		for start := 0; start < len(sentences); start += maxSentencesPerChunk {
			end := start + maxSentencesPerChunk
			if end > len(sentences) {
				end = len(sentences)
			}

			chunk := newChunk(strings.Join(sentences[start:end], " "), basePath, "chunk", len(chunks), pos, nil)
			chunks = append(chunks, chunk)
			pos = *chunk.EndPos
		}

		return chunks, nil
	}
}

// ParagraphChunker creates a chunker that splits by blank lines.
func ParagraphChunker() ChunkFunc {
	return func(text string, basePath string) ([]ChunkWithPath, error) {
		chunks := []ChunkWithPath{}
		pos := 0

		for i, para := range strings.Split(text, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}

			chunk := newChunk(para, basePath, "para", i, pos, nil)
			chunks = append(chunks, chunk)
			pos = *chunk.EndPos + 2 // "\n\n"
		}

		return chunks, nil
	}
}

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

func mean(vectors [][]float32) []float32 {
	avg := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for j := range v {
			avg[j] += v[j]
		}
	}
	for j := range avg {
		avg[j] /= float32(len(vectors))
	}
	return avg
}

// SemanticChunker groups consecutive sentences while they stay similar to
// the running chunk. A chunk ends when the similarity of the next sentence
// to the mean embedding of the chunk drops below similarityThreshold or the
// chunk would exceed maxChunkSize bytes.
func SemanticChunker(embed EmbedFunc, maxChunkSize int, similarityThreshold float32) ChunkFunc {
	return func(text string, basePath string) ([]ChunkWithPath, error) {
		if embed == nil {
			return nil, fmt.Errorf("semantic chunker needs an embedder")
		}

		sentences := splitSentences(text)
		if len(sentences) == 0 {
			return nil, fmt.Errorf("no sentences found in text")
		}

		embeddings := make([][]float32, 0, len(sentences))
		for _, sentence := range sentences {
			embedding, err := embed(sentence)
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings: %w", err)
			}
			embeddings = append(embeddings, embedding)
		}

		chunks := []ChunkWithPath{}
		var current []string
		var currentEmbeddings [][]float32
		currentLength := 0
		pos := 0

		flush := func() {
			chunk := newChunk(strings.Join(current, " "), basePath, "chunk", len(chunks), pos, model.Metadata{
				"num_sentences":   len(current),
				"chunking_method": "semantic",
			})
			chunks = append(chunks, chunk)
			pos = *chunk.EndPos
			current = nil
			currentEmbeddings = nil
			currentLength = 0
		}

		for i, sentence := range sentences {
			if len(current) > 0 {
				similarity := cosineSimilarity(mean(currentEmbeddings), embeddings[i])
				if similarity < similarityThreshold || currentLength+len(sentence) > maxChunkSize {
					flush()
				}
			}

			current = append(current, sentence)
			currentEmbeddings = append(currentEmbeddings, embeddings[i])
			currentLength += len(sentence)
		}
		flush()

		return chunks, nil
	}
}

// DefaultChunker creates a semantic chunker on top of DefaultEmbedder.
// The model is loaded once, on the first call.
func DefaultChunker(maxChunkSize int, similarityThreshold float32) ChunkFunc {
	var once sync.Once
	var chunker ChunkFunc
	var initErr error
	return func(text string, basePath string) ([]ChunkWithPath, error) {
		once.Do(func() {
			embedder, err := DefaultEmbedder()
			if err != nil {
				initErr = err
				return
			}
			chunker = SemanticChunker(embedder, maxChunkSize, similarityThreshold)
		})
		if initErr != nil {
			return nil, initErr
		}
		return chunker(text, basePath)
	}
}
