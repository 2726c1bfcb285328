package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFeatures_IPLoginURL(t *testing.T) {
	f := ExtractFeatures("http://192.168.10.20/login.php")

	assert.Equal(t, 1.0, f[FeatIPExist])
	assert.Equal(t, 0.0, f[FeatAbnormalURL])
	assert.Equal(t, 4.0, f[FeatDotCount])
	assert.Equal(t, 0.0, f[FeatWWWCount])
	assert.Equal(t, 0.0, f[FeatAtCount])
	assert.Equal(t, 2.0, f[FeatSubdomainCount])
	assert.Equal(t, 0.0, f[FeatShorteningService])
	assert.Equal(t, 0.0, f[FeatHTTPSCount])
	assert.Equal(t, 1.0, f[FeatHTTPCount])
	assert.Equal(t, 30.0, f[FeatURLLength])
	assert.Equal(t, 13.0, f[FeatHostnameLength])
	assert.Equal(t, 0.0, f[FeatNoEmbed])
	assert.Equal(t, 1.0, f[FeatSuspiciousWords])
	assert.Equal(t, 10.0, f[FeatDigitCount])
	assert.Equal(t, 12.0, f[FeatLettersCount])
	assert.Equal(t, 9.0, f[FeatFDLength])
	assert.Equal(t, 2.0, f[FeatTLDLength])
}

func TestExtractFeatures_CountsAndFlags(t *testing.T) {
	f := ExtractFeatures("https://www.secure-pay.example.com/a/b?x=1&y=2%20")

	assert.Equal(t, 1.0, f[FeatWWWCount])
	assert.Equal(t, 1.0, f[FeatHyphenCount])
	assert.Equal(t, 1.0, f[FeatHTTPSCount])
	assert.Equal(t, 1.0, f[FeatHTTPCount], "https also contains http")
	assert.Equal(t, 1.0, f[FeatQueryCount])
	assert.Equal(t, 2.0, f[FeatEqualCount])
	assert.Equal(t, 1.0, f[FeatPercentCount])
	assert.Equal(t, 2.0, f[FeatSubdomainCount])
	assert.Equal(t, 1.0, f[FeatFDLength])
	assert.Equal(t, 3.0, f[FeatTLDLength])
	assert.Equal(t, 1.0, f[FeatSuspiciousWords])
}

func TestExtractFeatures_TLDLength(t *testing.T) {
	tests := []struct {
		url  string
		want float64
	}{
		{"http://example.com", 3},
		{"http://example.co.uk/path", 2},
		{"http://localhost", -1},
		{"not a url", -1},
		{"", -1},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFeatures(tt.url)[FeatTLDLength])
		})
	}
}

func TestExtractFeatures_ShortenerMatching(t *testing.T) {
	assert.Equal(t, 1.0, ExtractFeatures("https://bit.ly/3abc")[FeatShorteningService])
	assert.Equal(t, 1.0, ExtractFeatures("https://BIT.LY/3abc")[FeatShorteningService])
	// Substring matching over the whole URL: "microsoft.com" contains "t.co".
	assert.Equal(t, 1.0, ExtractFeatures("https://microsoft.com")[FeatShorteningService])
	assert.Equal(t, 0.0, ExtractFeatures("https://example.org")[FeatShorteningService])
}

func TestExtractFeatures_SuspiciousWordsIgnoreCase(t *testing.T) {
	assert.Equal(t, 1.0, ExtractFeatures("http://example.org/LOGIN")[FeatSuspiciousWords])
	assert.Equal(t, 1.0, ExtractFeatures("http://example.org/VerifyAccount")[FeatSuspiciousWords])
	assert.Equal(t, 0.0, ExtractFeatures("http://example.org/about")[FeatSuspiciousWords])
}

func TestExtractFeatures_NoEmbedUsesPath(t *testing.T) {
	assert.Equal(t, 1.0, ExtractFeatures("http://example.org//evil.com/x")[FeatNoEmbed])
	assert.Equal(t, 0.0, ExtractFeatures("http://example.org/x?next=//evil.com")[FeatNoEmbed])
}

func TestExtractFeatures_MalformedInputNeverPanics(t *testing.T) {
	inputs := []string{"", "::::", "%zz", "http://[::1", "not a url", strings.Repeat("@", 5000)}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			var f FeatureVector
			assert.NotPanics(t, func() { f = ExtractFeatures(in) })
			assert.Len(t, f, FeatureCount)
			assert.Equal(t, 1.0, f[FeatAbnormalURL])
			assert.Equal(t, 0.0, f[FeatSubdomainCount])
			assert.Equal(t, 0.0, f[FeatHostnameLength])
			assert.Equal(t, 0.0, f[FeatFDLength])
			assert.Equal(t, -1.0, f[FeatTLDLength])
		})
	}
}

func TestExtractFeatures_IPv6Host(t *testing.T) {
	f := ExtractFeatures("http://[2001:db8::1]/index.html")
	assert.Equal(t, 0.0, f[FeatAbnormalURL])
	assert.Equal(t, float64(len("[2001:db8::1]")), f[FeatHostnameLength])
	assert.Equal(t, -1.0, f[FeatTLDLength])
}

func TestTextLengthCountsUTF16Units(t *testing.T) {
	assert.Equal(t, 5, textLength("hello"))
	assert.Equal(t, 2, textLength("é€"))
	assert.Equal(t, 2, textLength("😀"))
}

func TestHostnameOf(t *testing.T) {
	assert.Equal(t, "accounts.google.com", hostnameOf("https://Accounts.Google.com/signin"))
	assert.Equal(t, "", hostnameOf("not a url"))
	assert.Equal(t, "xn--exmple-cua.com", hostnameOf("http://EXÄMPLE.com/"))
	assert.Equal(t, "evil.com", hostnameOf("http://evil.com\\path"))
	assert.Equal(t, "example.com", hostnameOf("  http://example.com/\n"))
}

// Hostnames follow browser URL parsing: IDN hosts become punycode, backslashes act as
// slashes for special schemes and surrounding whitespace is ignored.
func TestExtractFeatures_BrowserHostParsing(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		abnormal    float64
		hostnameLen float64
		fdLen       float64
		tldLen      float64
	}{
		{"idn host", "http://exämple.com/1.2.3.4/", 1, 18, 7, 3},
		{"homograph host", "https://раураl.com/signin", 1, 18, 6, 3},
		{"backslash path", "http://evil.com\\1.2.3.4\\x", 0, 8, 7, 3},
		{"backslash kept in query", "http://evil.com/a?next=\\b", 0, 8, 1, 3},
		{"surrounding whitespace", " http://example.com/a\t", 0, 11, 1, 3},
		{"underscore label", "http://my_host.example.com/", 0, 19, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ExtractFeatures(tt.url)
			assert.Equal(t, tt.abnormal, f[FeatAbnormalURL], "abnormal_url")
			assert.Equal(t, tt.hostnameLen, f[FeatHostnameLength], "hostname_length")
			assert.Equal(t, tt.fdLen, f[FeatFDLength], "fd_length")
			assert.Equal(t, tt.tldLen, f[FeatTLDLength], "tld_length")
		})
	}
}

func TestParseURL_RejectsInvalidIDN(t *testing.T) {
	_, ok := parseURL("http://exa\u2028mple.com/")
	assert.False(t, ok, "line separator is not a valid host code point")
	assert.Equal(t, 1.0, ExtractFeatures("http://exa\u2028mple.com/")[FeatAbnormalURL])
}
