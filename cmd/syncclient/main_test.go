package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erauner12/shiftsync/internal/kvstore"
)

func TestLoadDeviceID(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()

	first, err := loadDeviceID(ctx, store, "")
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	again, err := loadDeviceID(ctx, store, "")
	require.NoError(t, err)
	assert.Equal(t, first, again, "generated id is persisted")

	configured, err := loadDeviceID(ctx, store, "tablet-2")
	require.NoError(t, err)
	assert.Equal(t, "tablet-2", configured)
}
