package xlsx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

func TestNormalise(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "crate"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "version"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "serde"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "1.0"))
	require.NoError(t, f.SetDocProps(&excelize.DocProperties{Title: "Dependencies"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := New().Normalise(context.Background(), &domain.Upload{Filename: "deps.xlsx", Data: buf.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, "Dependencies", res.Title)
	assert.Equal(t, "Sheet1\ncrate\tversion\nserde\t1.0", res.Content)
}

func TestNormalise_Invalid(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.Upload{Filename: "x.xlsx", Data: []byte("nope")})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFormat))
}
