package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNG(t *testing.T) {
	g := NewGenerator(0)

	img, err := g.PNG("tkt-aaaa2222")
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, decoded.Bounds().Dx())
}

func TestPNG_EmptyCode(t *testing.T) {
	_, err := NewGenerator(128).PNG("  ")
	assert.Error(t, err)
}
