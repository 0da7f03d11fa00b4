package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yasu-888/monologue-muser/internal/domain/recording"

	"github.com/google/uuid"
)

var (
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidTitle  = errors.New("title must not contain '/'")
)

type URLSigner interface {
	SignedPutURL(ctx context.Context, bucket, object, contentType string, ttl time.Duration) (string, error)
}

type IssueUploadURL struct {
	signer URLSigner
	bucket string
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

func NewIssueUploadURL(signer URLSigner, bucket string, ttl time.Duration) *IssueUploadURL {
	return &IssueUploadURL{
		signer: signer,
		bucket: bucket,
		ttl:    ttl,
		now:    time.Now,
		newID:  func() string { return uuid.New().String()[:8] },
	}
}

type IssueUploadURLParams struct {
	Title         string `json:"title"`
	FileExtension string `json:"file_extension"`
}

type UploadURL struct {
	SignedURL   string `json:"signed_url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (uc *IssueUploadURL) Execute(ctx context.Context, params IssueUploadURLParams) (UploadURL, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return UploadURL{}, ErrTitleRequired
	}
	if strings.Contains(title, "/") {
		return UploadURL{}, ErrInvalidTitle
	}

	ext := recording.NormalizeExtension(params.FileExtension)
	filename := recording.Filename(uc.now(), uc.newID(), title, ext)
	contentType := recording.ContentType(ext)

	url, err := uc.signer.SignedPutURL(ctx, uc.bucket, filename, contentType, uc.ttl)
	if err != nil {
		return UploadURL{}, fmt.Errorf("issue upload url: %w", err)
	}

	uploadURLsIssued.Inc()
	return UploadURL{SignedURL: url, Filename: filename, ContentType: contentType}, nil
}

// TTL is how long issued URLs stay valid.
func (uc *IssueUploadURL) TTL() time.Duration {
	return uc.ttl
}
