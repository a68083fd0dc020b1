package reader

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/metervision/meter-reader/internal/vision"
)

// VisionClient is the transport boundary to the hosted extraction model.
// Any vision-capable model can sit behind this text-in/text-out contract.
type VisionClient interface {
	Extract(ctx context.Context, base64Payload, mimeType, instruction string) (string, error)
}

// Extractor runs the image-to-reading pipeline: encode, call the model,
// parse and normalize the reply.
type Extractor struct {
	client VisionClient
	prompt string
}

// NewExtractor creates an extractor using the fixed extraction prompt.
func NewExtractor(client VisionClient) *Extractor {
	return &Extractor{client: client, prompt: vision.ExtractionPrompt}
}

// ReadMeter extracts a meter reading from the image at path. The processing
// time covers encoding through normalization. The caller owns deletion of
// the file on every exit path.
func (e *Extractor) ReadMeter(ctx context.Context, path string) (MeterReading, ProcessingMetrics, error) {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return MeterReading{}, ProcessingMetrics{}, fmt.Errorf("read image: %w", err)
	}

	payload, mimeType, size := vision.EncodeImage(path, data)

	reply, err := e.client.Extract(ctx, payload, mimeType, e.prompt)
	if err != nil {
		return MeterReading{}, ProcessingMetrics{}, err
	}

	return ParseReading(reply, size, time.Since(start))
}
