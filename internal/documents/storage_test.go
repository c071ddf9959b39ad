package documents

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/verification-engine/pkg/storage"
)

func TestArchiveExtractionRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := NewStorageProvider(storage.NewMemoryS3Client(), "evidence")
	docID := uuid.New()

	key, err := provider.ArchiveExtraction(ctx, "session-42", docID, []byte(`{"totalCO2Kg": 12}`))
	require.NoError(t, err)
	assert.Equal(t, "subjects/session-42/extractions/"+docID.String()+".json", key)

	data, err := provider.LoadExtraction(ctx, "session-42", docID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalCO2Kg": 12}`, string(data))
}

func TestLoadExtractionMissing(t *testing.T) {
	provider := NewStorageProvider(storage.NewMemoryS3Client(), "evidence")

	_, err := provider.LoadExtraction(context.Background(), "nobody", uuid.New())
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}
