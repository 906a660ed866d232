package publish_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/registry-crawler/internal/publish"
	"github.com/JakeFAU/registry-crawler/internal/registry"
)

func TestMemoryRecordsPublishes(t *testing.T) {
	t.Parallel()

	p := publish.NewMemory()
	require.NoError(t, p.Publish(context.Background(), registry.Record{Identity: "a", Title: "one"}))
	require.NoError(t, p.Publish(context.Background(), registry.Record{Identity: "b", Title: "two"}))

	got := p.Records()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Identity)

	got[0].Identity = "mutated"
	assert.Equal(t, "a", p.Records()[0].Identity)

	require.NoError(t, p.Close())
}

func TestNoopPublisher(t *testing.T) {
	t.Parallel()

	var p publish.Noop
	require.NoError(t, p.Publish(context.Background(), registry.Record{Identity: "x"}))
	require.NoError(t, p.Close())
}
