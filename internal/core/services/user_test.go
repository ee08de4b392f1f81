package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

func TestUserService_Usage(t *testing.T) {
	f := newDocFixture(t, domain.DefaultQuotaBytes, domain.FormatDegrade, "alice")
	ctx := context.Background()

	_, err := f.svc.Put(ctx, textUpload("alice", "a.txt", "first document"))
	require.NoError(t, err)
	_, err = f.svc.Put(ctx, binaryUpload("alice", "b.bin", 1024, 'x'))
	require.NoError(t, err)

	svc := NewUserService(f.store.UserStore(), f.store.DocumentStore(), domain.DefaultQuotaBytes)
	usage, err := svc.Usage(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", usage.Username)
	assert.Equal(t, int64(14+1024), usage.TotalStorageBytes)
	assert.Equal(t, domain.DefaultQuotaBytes, usage.QuotaBytes)
	assert.Equal(t, 2, usage.DocumentCount)
	assert.Equal(t, domain.DefaultQuotaBytes-1038, usage.Remaining())
}

func TestUserService_UsageErrors(t *testing.T) {
	f := newDocFixture(t, domain.DefaultQuotaBytes, domain.FormatDegrade)
	svc := NewUserService(f.store.UserStore(), f.store.DocumentStore(), domain.DefaultQuotaBytes)

	_, err := svc.Usage(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Usage(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserService_Lookup(t *testing.T) {
	f := newDocFixture(t, domain.DefaultQuotaBytes, domain.FormatDegrade)
	ctx := context.Background()
	require.NoError(t, f.store.UserStore().CreateUser(ctx, &domain.User{ID: "id-1", Username: "alice"}))
	svc := NewUserService(f.store.UserStore(), f.store.DocumentStore(), domain.DefaultQuotaBytes)

	user, err := svc.Lookup(ctx, " alice ")
	require.NoError(t, err)
	assert.Equal(t, "id-1", user.ID)

	_, err = svc.Lookup(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Lookup(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
