// Package tesseract binds the OCR engine contract to libtesseract through
// gosseract. It needs cgo and the tesseract headers at build time.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/constructai-backend/internal/ocr"
	"github.com/angelmondragon/constructai-backend/pkg/config"
	"github.com/otiai10/gosseract/v2"
)

// Engine wraps one gosseract client. It is not safe for concurrent use.
type Engine struct {
	client *gosseract.Client
}

// Factory returns an ocr.EngineFactory configured from cfg.
func Factory(cfg config.OCRConfig) ocr.EngineFactory {
	languages := make([]string, 0, len(cfg.Languages))
	for _, l := range cfg.Languages {
		if l = strings.TrimSpace(l); l != "" {
			languages = append(languages, l)
		}
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return func() (ocr.Engine, error) {
		client := gosseract.NewClient()
		if cfg.TessdataPath != "" {
			if err := client.SetTessdataPrefix(cfg.TessdataPath); err != nil {
				client.Close()
				return nil, fmt.Errorf("set tessdata prefix: %w", err)
			}
		}
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("set languages: %w", err)
		}
		return &Engine{client: client}, nil
	}
}

// Recognize reads the image at path. Confidence is the mean word confidence.
func (e *Engine) Recognize(ctx context.Context, path string) (ocr.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}
	if err := e.client.SetImage(path); err != nil {
		return ocr.Recognition{}, fmt.Errorf("load image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("word confidences: %w", err)
	}
	confidences := make([]float64, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) != "" {
			confidences = append(confidences, b.Confidence)
		}
	}
	return ocr.Recognition{Text: text, Confidence: MeanConfidence(confidences)}, nil
}

func (e *Engine) Close() error {
	return e.client.Close()
}

// MeanConfidence averages word scores, 0 when there are none.
func MeanConfidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
