package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <item>
      <title>Post One</title>
      <link>https://blog.example.com/one</link>
      <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
      <description><![CDATA[<p>Summary of <b>post one</b>.</p>]]></description>
    </item>
    <item>
      <title>Post Two</title>
      <link>https://blog.example.com/two</link>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Channel Uploads</title>
  <entry>
    <title>Video A</title>
    <link rel="alternate" href="https://videos.example.com/a"/>
    <published>2026-02-20T08:00:00Z</published>
    <summary>First upload.</summary>
  </entry>
</feed>`

func TestParseFeedRSS(t *testing.T) {
	feed, err := parseFeed([]byte(sampleRSS))
	require.NoError(t, err)

	assert.Equal(t, "Example Blog", feed.Title)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "Post One", feed.Items[0].Title)
	assert.Equal(t, "https://blog.example.com/one", feed.Items[0].Link)
	assert.Contains(t, feed.Items[0].Summary, "Summary of post one")
	assert.NotContains(t, feed.Items[0].Summary, "<p>")
}

func TestParseFeedAtom(t *testing.T) {
	feed, err := parseFeed([]byte(sampleAtom))
	require.NoError(t, err)

	assert.Equal(t, "Channel Uploads", feed.Title)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Video A", feed.Items[0].Title)
	assert.Equal(t, "https://videos.example.com/a", feed.Items[0].Link)
	assert.Equal(t, "2026-02-20T08:00:00Z", feed.Items[0].Published)
}

func TestParseFeedRejectsNonFeedXML(t *testing.T) {
	_, err := parseFeed([]byte(`<html><body>nope</body></html>`))
	assert.Error(t, err)
}

func TestRenderFeed(t *testing.T) {
	feed, err := parseFeed([]byte(sampleRSS))
	require.NoError(t, err)

	body := renderFeed(feed)
	assert.Contains(t, body, "Post One")
	assert.Contains(t, body, "https://blog.example.com/two")
}

func TestVideoChannelFeedURLFromPath(t *testing.T) {
	feedURL, ok := videoChannelFeedURL("https://www.youtube.com/channel/UCabcdefghijklmnop", nil)
	require.True(t, ok)
	assert.Equal(t, "https://www.youtube.com/feeds/videos.xml?channel_id=UCabcdefghijklmnop", feedURL)
}

func TestVideoChannelFeedURLFromBody(t *testing.T) {
	body := []byte(`<script>var cfg = {"channelId":"UCzyxwvutsrqponmlk"};</script>`)
	feedURL, ok := videoChannelFeedURL("https://www.youtube.com/@somecreator", body)
	require.True(t, ok)
	assert.Contains(t, feedURL, "UCzyxwvutsrqponmlk")
}

func TestVideoChannelFeedURLIgnoresOtherHosts(t *testing.T) {
	_, ok := videoChannelFeedURL("https://vimeo.com/channel/123", nil)
	assert.False(t, ok)
}
