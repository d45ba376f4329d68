package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeromwolf/FluxNews/pkg/httpclient"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Business News</title>
    <language>en-us</language>
    <item>
      <title>Samsung Electronics announces record earnings</title>
      <link>https://example.com/samsung-earnings</link>
      <description><![CDATA[<p>Samsung posted <b>record</b> profits.</p>]]></description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>Untitled item is skipped</title>
      <link></link>
    </item>
  </channel>
</rss>`

func TestRSSSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	src := NewRSSSource(srv.URL+"/rss", client, false, nil)

	articles, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1, "items without a link are skipped")

	a := articles[0]
	assert.Equal(t, "Samsung Electronics announces record earnings", a.Title)
	assert.Equal(t, "https://example.com/samsung-earnings", a.URL)
	assert.Equal(t, "Samsung posted record profits.", a.Summary, "summary markup is stripped")
	assert.Equal(t, 2006, a.PublishedAt.Year())
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CollectedAt.IsZero())
}

func TestRSSSourceFetchBadFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("this is not xml"))
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	src := NewRSSSource(srv.URL, client, false, nil)

	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", stripHTML("plain text"))
	assert.Equal(t, "bold and linked", stripHTML(`<p><b>bold</b> and <a href="#">linked</a></p>`))
	assert.Equal(t, "spaced out", stripHTML("<div>spaced</div>   <div>out</div>"))
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "news.google.com", sourceName("https://news.google.com/rss/search?q=x"))
	assert.Equal(t, "example.com", sourceName("https://www.Example.com/feed"))
	assert.Equal(t, "not a url", sourceName("not a url"))
}
