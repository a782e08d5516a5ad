package s2like

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/httpfetch"
)

func TestClient_SearchWorks_StripsHTMLFromAbstract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{
			"paperId":"p1",
			"title":"A Study",
			"abstract":"<p>We study <b>graphs</b>.</p>",
			"year":2024,
			"externalIds":{"DOI":"10.1000/xyz"}
		}]}`))
	}))
	defer server.Close()

	f := httpfetch.New(httpfetch.Config{}, zerolog.Nop())
	c := New(Config{BaseURL: server.URL}, f, zerolog.Nop())

	works, err := c.SearchWorks(context.Background(), "graphs", 10)
	require.NoError(t, err)
	require.Len(t, works, 1)

	w := works[0]
	assert.Equal(t, domain.ProviderB, w.Provider)
	assert.Equal(t, "We study graphs.", w.Abstract)
	assert.Equal(t, "10.1000/xyz", w.DOI)
}

func TestStripHTML_PlainTextUnaffected(t *testing.T) {
	assert.Equal(t, "plain text", stripHTML("plain text"))
	assert.Equal(t, "", stripHTML(""))
}
