package plaintext

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

func TestNormalise(t *testing.T) {
	n := New()

	res, err := n.Normalise(context.Background(), &domain.Upload{
		Filename: "meeting-notes.txt",
		Data:     []byte("\xef\xbb\xbf  hello world  \n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "meeting notes", res.Title)
	assert.Equal(t, "hello world", res.Content)
}

func TestNormalise_RejectsBinary(t *testing.T) {
	n := New()

	_, err := n.Normalise(context.Background(), &domain.Upload{Filename: "a.txt", Data: []byte{0x00, 0x01, 0xff}})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFormat))
}

func TestNormalise_Nil(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPriority(t *testing.T) {
	assert.Less(t, New().Priority(), 10)
}
