package to_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/socially-app/socially/internal/to"
	"github.com/stretchr/testify/require"
)

// mockResponseWriter is an io.Writer that satisfies http.ResponseWriter.
type mockResponseWriter struct {
	bytes.Buffer
}

func (w *mockResponseWriter) Header() http.Header { return http.Header{} }

func (w *mockResponseWriter) WriteHeader(int) {}

func TestJSON(t *testing.T) {
	t.Run("nil slice encodes as empty array", func(t *testing.T) {
		require := require.New(t)
		var out mockResponseWriter
		require.NoError(to.JSON(&out, []string(nil)))
		require.Equal("[]", out.String())
	})

	t.Run("nil map encodes as empty object", func(t *testing.T) {
		require := require.New(t)
		var out mockResponseWriter
		require.NoError(to.JSON(&out, map[string]string(nil)))
		require.Equal("{}", out.String())
	})

	t.Run("nested nil slice encodes as empty array", func(t *testing.T) {
		require := require.New(t)
		var out mockResponseWriter
		require.NoError(to.JSON(&out, map[string]interface{}{"messages": []string(nil)}))
		require.Equal("{\n  \"messages\": []\n}", out.String())
	})

	t.Run("html is not escaped", func(t *testing.T) {
		require := require.New(t)
		var out mockResponseWriter
		require.NoError(to.JSON(&out, map[string]interface{}{"bio": "<p>hi</p>"}))
		require.Equal("{\n  \"bio\": \"<p>hi</p>\"\n}", out.String())
	})
}
