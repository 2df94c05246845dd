package hostname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer(DefaultPolicy())

	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "lowercases and strips www", raw: "https://WWW.Example.COM/path", want: "example.com", wantOK: true},
		{name: "keeps subdomain", raw: "https://api.example.com/x", want: "api.example.com", wantOK: true},
		{name: "strips only one www", raw: "http://www.www.example.com/", want: "www.example.com", wantOK: true},
		{name: "ipv4 literal", raw: "http://10.0.0.1/", wantOK: false},
		{name: "ipv6 literal", raw: "http://[::1]/", wantOK: false},
		{name: "port is dropped", raw: "http://example.com:8080/", want: "example.com", wantOK: true},
		{name: "not a url", raw: "not a url", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
		{name: "bad escape", raw: "http://%zz/", wantOK: false},
		{name: "ignored tracker", raw: "https://sub.doubleclick.net/x", wantOK: false},
		{name: "ignored substring", raw: "https://pagead2.googleadsystem.com/", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Normalize(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCustomIgnore(t *testing.T) {
	n := NewNormalizer(Policy{Ignore: []string{" Internal.Corp ", ""}})

	_, ok := n.Normalize("https://build.internal.corp/status")
	assert.False(t, ok)

	host, ok := n.Normalize("https://sub.doubleclick.net/x")
	assert.True(t, ok, "default ignore list is replaced, not merged")
	assert.Equal(t, "sub.doubleclick.net", host)
}

func TestNormalizeFoldToRegistrable(t *testing.T) {
	policy := DefaultPolicy()
	policy.FoldToRegistrable = true
	n := NewNormalizer(policy)

	tests := []struct {
		raw  string
		want string
	}{
		{"https://api.example.com/x", "example.com"},
		{"https://www.example.com/", "example.com"},
		{"https://a.b.example.co.uk/", "example.co.uk"},
		{"https://example.com/", "example.com"},
	}

	for _, tt := range tests {
		got, ok := n.Normalize(tt.raw)
		assert.True(t, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNormalizeHost(t *testing.T) {
	n := NewNormalizer(DefaultPolicy())

	host, ok := n.NormalizeHost("WWW.Example.com")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)

	host, ok = n.NormalizeHost("https://api.example.com/path")
	assert.True(t, ok)
	assert.Equal(t, "api.example.com", host)

	_, ok = n.NormalizeHost("   ")
	assert.False(t, ok)

	_, ok = n.NormalizeHost("192.168.1.1")
	assert.False(t, ok)
}
