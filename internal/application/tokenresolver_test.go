package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/buildstatus/internal/application"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

func TestResolveToken_ScopeOrder(t *testing.T) {
	tests := []struct {
		name     string
		tokens   map[string]string
		fallback string
		want     string
	}{
		{name: "repo scope wins", tokens: map[string]string{"octo/widgets": "repo", "octo": "owner"}, fallback: "env", want: "repo"},
		{name: "owner scope next", tokens: map[string]string{"octo": "owner"}, fallback: "env", want: "owner"},
		{name: "fallback last", tokens: map[string]string{"other": "x"}, fallback: "env", want: "env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockCredentialStore{tokens: tt.tokens}
			r := application.NewStoredTokenResolver(store, tt.fallback, discardLogger())

			got, err := r.ResolveToken(context.Background(), "octo", "widgets")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveToken_Missing(t *testing.T) {
	store := &mockCredentialStore{tokens: map[string]string{}}
	r := application.NewStoredTokenResolver(store, "", discardLogger())

	_, err := r.ResolveToken(context.Background(), "octo", "widgets")

	require.ErrorIs(t, err, driven.ErrTokenMissing)
	assert.Equal(t, []string{"octo/widgets", "octo"}, store.gets)
}

func TestResolveToken_NilStoreUsesFallback(t *testing.T) {
	r := application.NewStoredTokenResolver(nil, "env", discardLogger())

	got, err := r.ResolveToken(context.Background(), "octo", "widgets")

	require.NoError(t, err)
	assert.Equal(t, "env", got)
}

func TestResolveToken_StoreWithoutKeyUsesFallback(t *testing.T) {
	store := &mockCredentialStore{err: driven.ErrEncryptionKeyNotSet}
	r := application.NewStoredTokenResolver(store, "env", discardLogger())

	got, err := r.ResolveToken(context.Background(), "octo", "widgets")

	require.NoError(t, err)
	assert.Equal(t, "env", got)
}

func TestResolveToken_StoreError(t *testing.T) {
	store := &mockCredentialStore{err: errors.New("disk I/O error")}
	r := application.NewStoredTokenResolver(store, "env", discardLogger())

	_, err := r.ResolveToken(context.Background(), "octo", "widgets")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "octo/widgets")
}
