package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/desertthunder/snapsong/internal/models"
	"github.com/desertthunder/snapsong/internal/shared"
	_ "golang.org/x/image/webp"
)

// Sentinel answers the extraction prompt asks for.
const (
	UnknownSongSentinel = "Unknown Song"
	NoMusicSentinel     = "No Music"
)

// ExtractionPrompt is the fixed instruction sent with every screenshot.
const ExtractionPrompt = "Extract the song artist and name from the image in the format 'Artist Song' without any delimiter. " +
	"The song is probably located in the upper left but might also be below a square canvas of the song art somewhere in the image. " +
	"Strip the result from any 'feat.' or 'featuring' or else tag. That is, keep the featured artists names, but remove the 'feat.' tag. " +
	"If the song name is not visible, just return '" + UnknownSongSentinel + "'. " +
	"If there's no music in the image, return '" + NoMusicSentinel + "'."

const defaultExtractTokens = 300

// VisionExtractor implements [Extractor] with a vision-capable chat model.
type VisionExtractor struct {
	client    Completer
	maxTokens int
	detail    string
}

// NewVisionExtractor wraps client. maxTokens and detail fall back to 300 and "low".
func NewVisionExtractor(client Completer, maxTokens int, detail string) *VisionExtractor {
	if maxTokens <= 0 {
		maxTokens = defaultExtractTokens
	}
	if detail == "" {
		detail = "low"
	}
	return &VisionExtractor{client: client, maxTokens: maxTokens, detail: detail}
}

// Extract sends the image with [ExtractionPrompt] and classifies the answer.
func (v *VisionExtractor) Extract(ctx context.Context, img []byte) (models.Extraction, error) {
	if len(img) == 0 {
		return models.Extraction{}, shared.ErrEmptyImage
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", DetectImageMIME(img), base64.StdEncoding.EncodeToString(img))
	text, err := v.client.Complete(ctx, ChatRequest{
		Messages: []ChatMessage{{
			Role: "user",
			Content: []ContentPart{
				{Type: "text", Text: ExtractionPrompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: dataURI, Detail: v.detail}},
			},
		}},
		MaxTokens: v.maxTokens,
	})
	if err != nil {
		return models.Extraction{}, err
	}

	return ClassifyExtraction(text)
}

// ClassifyExtraction maps raw model text to a tagged [models.Extraction].
//
// Sentinels are compared after trimming whitespace, wrapping quotes and a trailing period, case-insensitively.
// Everything else becomes a [models.SongQuery] carrying the trimmed text.
func ClassifyExtraction(raw string) (models.Extraction, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return models.Extraction{Raw: raw}, shared.ErrEmptyExtraction
	}

	switch normalizeSentinel(text) {
	case strings.ToLower(UnknownSongSentinel):
		return models.Extraction{Kind: models.UnknownSong, Raw: raw}, nil
	case strings.ToLower(NoMusicSentinel):
		return models.Extraction{Kind: models.NoMusic, Raw: raw}, nil
	}

	return models.Extraction{Kind: models.SongQuery, Query: text, Raw: raw}, nil
}

func normalizeSentinel(text string) string {
	s := strings.TrimSpace(text)
	s = strings.Trim(s, "\"'`")
	s = strings.TrimSuffix(s, ".")
	s = strings.Trim(s, "\"'`")
	return strings.ToLower(strings.TrimSpace(s))
}

// DetectImageMIME sniffs the image format. Unknown formats are sent as JPEG.
func DetectImageMIME(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "image/jpeg"
	}
	switch format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
