package crawler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRenderPolicy(t *testing.T) {
	for raw, want := range map[string]RenderPolicy{
		"auto":   RenderAuto,
		"always": RenderAlways,
		"never":  RenderNever,
		"":       RenderAuto,
	} {
		got, err := ParseRenderPolicy(raw)
		require.NoError(t, err, "policy %q", raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseRenderPolicy("sometimes")
	assert.Error(t, err)
}

func TestPageContentDisposition(t *testing.T) {
	assert.Empty(t, Page{}.ContentDisposition())

	h := http.Header{}
	h.Set("Content-Disposition", `attachment; filename="a.png"`)
	assert.Equal(t, `attachment; filename="a.png"`, Page{Headers: h}.ContentDisposition())
}
