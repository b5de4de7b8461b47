package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		base string
		href string
		want string
		ok   bool
	}{
		{
			name: "relative path with tracking param and fragment",
			base: "http://x.com/a",
			href: "/b?utm_source=x#frag",
			want: "http://x.com/b",
			ok:   true,
		},
		{
			name: "absolute href ignores base",
			base: "http://x.com/a",
			href: "https://other.com/page",
			want: "https://other.com/page",
			ok:   true,
		},
		{
			name: "host lowercased",
			base: "http://Example.COM/dir/",
			href: "sub/page.html",
			want: "http://example.com/dir/sub/page.html",
			ok:   true,
		},
		{
			name: "non-tracking query survives",
			base: "http://x.com/",
			href: "/search?q=go&fbclid=abc&page=2",
			want: "http://x.com/search?page=2&q=go",
			ok:   true,
		},
		{
			name: "mixed-case tracking param stripped",
			base: "http://x.com/",
			href: "/p?UTM_Source=mail",
			want: "http://x.com/p",
			ok:   true,
		},
		{name: "javascript scheme", base: "http://x.com/", href: "javascript:void(0)"},
		{name: "mailto scheme", base: "http://x.com/", href: "mailto:a@b.com"},
		{name: "tel scheme", base: "http://x.com/", href: "tel:+1234"},
		{name: "ftp scheme", base: "http://x.com/", href: "ftp://files.x.com/a"},
		{name: "empty href", base: "http://x.com/", href: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.base, tt.href)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	first, ok := Normalize("http://x.com/a", "/b?id=7&utm_campaign=spring#top")
	require.True(t, ok)

	second, ok := Normalize(first, first)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestIsAllowedDomain(t *testing.T) {
	allowed := []string{"example.com"}

	assert.True(t, IsAllowedDomain("http://example.com/a", allowed))
	assert.True(t, IsAllowedDomain("http://sub.example.com/a", allowed))
	assert.False(t, IsAllowedDomain("http://evil.com/a", allowed))
	assert.False(t, IsAllowedDomain("http://notexample.com/a", allowed))
	assert.False(t, IsAllowedDomain("http://example.com.evil.com/a", allowed))

	assert.True(t, IsAllowedDomain("http://anything.net/", nil), "empty allowlist admits all")
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://example.com", Origin("HTTPS://Example.COM/path?q=1"))
	assert.Equal(t, "http://a.com:8080", Origin("http://a.com:8080/x"))
	assert.Equal(t, "", Origin("not a url at all\x7f"))
}
