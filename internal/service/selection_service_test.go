package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldserve/evidence-api/internal/models"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
)

type formatterStub struct {
	out string
	err error
}

func (f *formatterStub) Format(ctx context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func TestSelectionServiceResolveAll(t *testing.T) {
	repo := newEvidenceRepoStub(
		imageEvidence("ev-b", "ticket-1", 2),
		imageEvidence("ev-a", "ticket-1", 1),
		imageEvidence("ev-other", "ticket-2", 1),
	)
	svc := NewSelectionService(repo, nil, nil, zap.NewNop())

	items, err := svc.Resolve(context.Background(), "ticket-1", nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ev-a", items[0].ID)
	assert.Equal(t, "ev-b", items[1].ID)
}

func TestSelectionServiceResolveSubset(t *testing.T) {
	repo := newEvidenceRepoStub(
		imageEvidence("ev-a", "ticket-1", 1),
		imageEvidence("ev-b", "ticket-1", 2),
		imageEvidence("ev-c", "ticket-1", 3),
	)
	svc := NewSelectionService(repo, nil, nil, zap.NewNop())

	items, err := svc.Resolve(context.Background(), "ticket-1", []string{"ev-c", "ev-a"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	// display order wins over request order
	assert.Equal(t, "ev-a", items[0].ID)
	assert.Equal(t, "ev-c", items[1].ID)
}

func TestSelectionServiceResolveRejectsForeignEvidence(t *testing.T) {
	repo := newEvidenceRepoStub(
		imageEvidence("ev-a", "ticket-1", 1),
		imageEvidence("ev-x", "ticket-2", 1),
	)
	svc := NewSelectionService(repo, nil, nil, zap.NewNop())

	_, err := svc.Resolve(context.Background(), "ticket-1", []string{"ev-a", "ev-x"})
	require.Error(t, err)

	_, err = svc.Resolve(context.Background(), "ticket-1", []string{"ev-a", "ev-missing"})
	require.Error(t, err)
}

func TestSelectionServiceAutoFormat(t *testing.T) {
	svc := NewSelectionService(nil, &formatterStub{out: "Tidied text."}, nil, zap.NewNop())
	resp := svc.AutoFormat(context.Background(), "tidied   text")
	assert.Equal(t, "Tidied text.", resp.Text)
	assert.False(t, resp.Fallback)
}

func TestSelectionServiceAutoFormatFallsBackOnError(t *testing.T) {
	svc := NewSelectionService(nil, &formatterStub{err: errors.New("502")}, nil, zap.NewNop())
	resp := svc.AutoFormat(context.Background(), "original words")
	assert.Equal(t, "original words", resp.Text)
	assert.True(t, resp.Fallback)
}

func TestSelectionServiceAutoFormatUnconfigured(t *testing.T) {
	svc := NewSelectionService(nil, nil, nil, zap.NewNop())
	resp := svc.AutoFormat(context.Background(), "raw")
	assert.Equal(t, "raw", resp.Text)
	assert.True(t, resp.Fallback)
}

type defaultsCacheStub struct {
	values map[string]models.ReportMetadata
}

func (c *defaultsCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	meta, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*models.ReportMetadata) = meta
	return nil
}

func (c *defaultsCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.values == nil {
		c.values = map[string]models.ReportMetadata{}
	}
	c.values[key] = value.(models.ReportMetadata)
	return nil
}

func TestSelectionServiceDefaultsRoundTrip(t *testing.T) {
	svc := NewSelectionService(nil, nil, &defaultsCacheStub{}, zap.NewNop())
	svc.SaveDefaults(context.Background(), "user-1", models.ReportMetadata{TicketNumber: "TK-1", ClientName: "Acme Industrial"})

	meta := svc.Defaults(context.Background(), "user-1")
	assert.Equal(t, "TK-1", meta.TicketNumber)
	assert.Equal(t, "Acme Industrial", meta.ClientName)

	assert.Empty(t, svc.Defaults(context.Background(), "user-2").TicketNumber)
}

func TestSelectionServiceDefaultsWithoutCache(t *testing.T) {
	svc := NewSelectionService(nil, nil, nil, zap.NewNop())
	// both are harmless no-ops when no cache is wired
	svc.SaveDefaults(context.Background(), "user-1", models.ReportMetadata{TicketNumber: "TK-1"})
	meta := svc.Defaults(context.Background(), "user-1")
	assert.Empty(t, meta.TicketNumber)
}
