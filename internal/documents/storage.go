package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"carbon-scribe/verification-engine/pkg/storage"
)

// StorageProvider archives the raw ExtractedData payload of every ingested document so a
// run can be re-derived from its original evidence.
type StorageProvider struct {
	s3     storage.S3Client
	bucket string
}

func NewStorageProvider(s3 storage.S3Client, bucket string) *StorageProvider {
	return &StorageProvider{
		s3:     s3,
		bucket: bucket,
	}
}

// ArchiveExtraction stores payload and returns the object key
func (p *StorageProvider) ArchiveExtraction(ctx context.Context, subjectID string, documentID uuid.UUID, payload []byte) (string, error) {
	key := p.GenerateS3Key(subjectID, documentID)
	if err := p.s3.Upload(ctx, p.bucket, key, bytes.NewReader(payload)); err != nil {
		return "", fmt.Errorf("failed to archive extraction: %w", err)
	}
	return key, nil
}

// LoadExtraction reads an archived payload back
func (p *StorageProvider) LoadExtraction(ctx context.Context, subjectID string, documentID uuid.UUID) ([]byte, error) {
	rc, err := p.s3.Download(ctx, p.bucket, p.GenerateS3Key(subjectID, documentID))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived extraction: %w", err)
	}
	return data, nil
}

func (p *StorageProvider) GenerateS3Key(subjectID string, documentID uuid.UUID) string {
	return fmt.Sprintf("subjects/%s/extractions/%s.json", subjectID, documentID)
}
