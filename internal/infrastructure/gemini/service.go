package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yasu-888/monologue-muser/internal/domain/note"
	"github.com/yasu-888/monologue-muser/internal/domain/recording"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// backend is the subset of the genai client the service uses.
type backend interface {
	Upload(ctx context.Context, path, mimeType string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
	Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)
}

type clientBackend struct {
	client *genai.Client
}

func (b clientBackend) Upload(ctx context.Context, path, mimeType string) (*genai.File, error) {
	return b.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
}

func (b clientBackend) DeleteFile(ctx context.Context, name string) error {
	_, err := b.client.Files.Delete(ctx, name, nil)
	return err
}

func (b clientBackend) Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// Service transcribes a recording and then summarizes the transcription.
type Service struct {
	backend backend
	model   string
	logger  *slog.Logger
}

func New(client *genai.Client, model string, logger *slog.Logger) *Service {
	return newService(clientBackend{client: client}, model, logger)
}

func newService(b backend, model string, logger *slog.Logger) *Service {
	if model == "" {
		model = DefaultModel
	}
	return &Service{backend: b, model: model, logger: logger}
}

type transcriptionResponse struct {
	Transcription string `json:"transcription"`
}

// Summarize never fails. Errors are turned into a degraded note whose
// Markdown explains which stage failed.
func (s *Service) Summarize(ctx context.Context, path string) note.Note {
	transcription, err := s.transcribe(ctx, path)
	if err != nil {
		s.logger.ErrorContext(ctx, "transcription failed", "error", err, "path", path)
		return degraded("Transcription error", err)
	}

	summary, err := s.summarize(ctx, transcription)
	if err != nil {
		s.logger.ErrorContext(ctx, "summary failed", "error", err, "path", path)
		return degraded("Summary error", err)
	}

	return summary
}

func (s *Service) transcribe(ctx context.Context, path string) (string, error) {
	file, err := s.backend.Upload(ctx, path, recording.ContentTypeOf(path))
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	defer func() {
		if err := s.backend.DeleteFile(context.WithoutCancel(ctx), file.Name); err != nil {
			s.logger.WarnContext(ctx, "failed to delete uploaded audio", "error", err, "file", file.Name)
		}
	}()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(transcriptionPrompt),
			genai.NewPartFromURI(file.URI, file.MIMEType),
		}, genai.RoleUser),
	}

	text, err := s.backend.Generate(ctx, s.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   transcriptionSchema,
	})
	if err != nil {
		return "", fmt.Errorf("generate transcription: %w", err)
	}

	var resp transcriptionResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil || resp.Transcription == "" {
		// Fall back to whatever text the model produced.
		return text, nil
	}
	return resp.Transcription, nil
}

func (s *Service) summarize(ctx context.Context, transcription string) (note.Note, error) {
	text, err := s.backend.Generate(ctx, s.model, genai.Text(summaryPrompt(transcription)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   summarySchema,
	})
	if err != nil {
		return note.Note{}, fmt.Errorf("generate summary: %w", err)
	}

	var n note.Note
	if err := json.Unmarshal([]byte(text), &n); err != nil {
		return note.Note{}, fmt.Errorf("decode summary: %w", err)
	}
	if strings.TrimSpace(n.Markdown) == "" {
		return note.Note{}, fmt.Errorf("decode summary: empty markdown")
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return n, nil
}

func degraded(heading string, err error) note.Note {
	return note.Note{
		Markdown: fmt.Sprintf("# %s\n\nAn error occurred while processing: %v", heading, err),
		Tags:     []string{note.ErrorTag},
		Degraded: true,
	}
}
