package validation

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "coffee", CleanText("  <script>alert(1)</script>coffee  "))
	assert.Equal(t, "午餐 🍜", CleanText("午餐 🍜"))
	assert.Equal(t, "ab", StripUnprintable("a\x07b"))
}

func TestValidateTextUpload(t *testing.T) {
	csv := bytes.NewReader([]byte("日期,金额\n2026-08-01,35.50\n"))
	require.NoError(t, ValidateTextUpload(csv))

	pos, err := csv.Seek(0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pos, "reader rewound for the parser")

	png := bytes.NewReader([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x01})
	assert.Error(t, ValidateTextUpload(png))
}

func TestValidateCurrencyCode(t *testing.T) {
	assert.NoError(t, ValidateCurrencyCode(""))
	assert.NoError(t, ValidateCurrencyCode("CNY"))
	assert.ErrorIs(t, ValidateCurrencyCode("cny"), ErrValidationFailed)
	assert.ErrorIs(t, ValidateCurrencyCode("YUAN"), ErrValidationFailed)
}

func TestValidateDateString(t *testing.T) {
	assert.NoError(t, ValidateDateString(""))
	assert.NoError(t, ValidateDateString("2026-08-28"))
	assert.NoError(t, ValidateDateString("2026-08-28 09:30:00"))
	assert.ErrorIs(t, ValidateDateString("28/08/2026"), ErrValidationFailed)
}

func TestValidateStringMaxLength(t *testing.T) {
	assert.NoError(t, ValidateStringMaxLength(strings.Repeat("a", MaxNameLength), MaxNameLength, "name"))
	assert.ErrorIs(t, ValidateStringMaxLength(strings.Repeat("a", MaxNameLength+1), MaxNameLength, "name"), ErrValidationFailed)
}
