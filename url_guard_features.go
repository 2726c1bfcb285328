/*
File: url_guard_features.go
Version: 1.0.0
Description: Lexical feature extraction for the URL Guard engine.
             Every extractor is total: parse failures map to a fixed default instead of an error.
*/

package main

import (
	"net/url"
	"strings"
	"unicode/utf16"

	"golang.org/x/net/idna"
)

// ExtractFeatures derives the 21 features of a raw URL. It never fails.
func ExtractFeatures(rawURL string) FeatureVector {
	var f FeatureVector
	u, parsed := parseURL(rawURL)
	host := ""
	if parsed {
		host = urlHostname(u)
	}

	f[FeatIPExist] = boolFeature(ipv4Pattern.MatchString(rawURL))
	f[FeatAbnormalURL] = abnormalURL(rawURL, host, parsed)
	f[FeatDotCount] = countOf(rawURL, ".")
	f[FeatWWWCount] = countOf(rawURL, "www")
	f[FeatAtCount] = countOf(rawURL, "@")
	f[FeatHyphenCount] = countOf(rawURL, "-")
	f[FeatSubdomainCount] = subdomainCount(host, parsed)
	f[FeatShorteningService] = boolFeature(shortenerPattern.MatchString(rawURL))
	f[FeatHTTPSCount] = countOf(rawURL, "https")
	f[FeatHTTPCount] = countOf(rawURL, "http")
	f[FeatPercentCount] = countOf(rawURL, "%")
	f[FeatQueryCount] = countOf(rawURL, "?")
	f[FeatEqualCount] = countOf(rawURL, "=")
	f[FeatURLLength] = float64(textLength(rawURL))
	f[FeatHostnameLength] = float64(textLength(host))
	f[FeatNoEmbed] = noEmbed(u, parsed)
	f[FeatSuspiciousWords] = boolFeature(suspiciousPattern.MatchString(strings.ToLower(rawURL)))
	f[FeatDigitCount], f[FeatLettersCount] = digitsAndLetters(rawURL)
	f[FeatFDLength] = firstDirLength(u, parsed)
	f[FeatTLDLength] = tldLength(host, parsed)

	return f
}

// hostProfile converts hostnames to their ASCII form the way browsers do: no STD3
// restriction and no hyphen checks, so "my_host" and "r3---sn" labels survive.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
	idna.CheckHyphens(false),
)

// specialSchemes treat "\" as "/" before the query.
var specialSchemes = map[string]bool{
	"http": true, "https": true, "ws": true, "wss": true, "ftp": true, "file": true,
}

var urlNewlineStripper = strings.NewReplacer("\t", "", "\n", "", "\r", "")

// parseURL accepts only absolute URLs. Surrounding control characters and spaces are
// trimmed and tabs or newlines dropped before parsing; the host must convert to ASCII.
func parseURL(rawURL string) (*url.URL, bool) {
	s := strings.TrimFunc(rawURL, func(r rune) bool { return r <= ' ' })
	s = urlNewlineStripper.Replace(s)

	if scheme, _, ok := strings.Cut(s, ":"); ok && specialSchemes[strings.ToLower(scheme)] {
		end := strings.IndexAny(s, "?#")
		if end < 0 {
			end = len(s)
		}
		s = strings.ReplaceAll(s[:end], "\\", "/") + s[end:]
	}

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	host := u.Hostname()
	if host == "" || strings.Contains(host, ":") {
		return u, true
	}
	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return nil, false
	}
	if ascii != host {
		if port := u.Port(); port != "" {
			u.Host = ascii + ":" + port
		} else {
			u.Host = ascii
		}
	}
	return u, true
}

// urlHostname returns the lowercased host, keeping brackets around IPv6 literals.
func urlHostname(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// hostnameOf is the hostname of rawURL, or "" when it does not parse.
func hostnameOf(rawURL string) string {
	u, ok := parseURL(rawURL)
	if !ok {
		return ""
	}
	return urlHostname(u)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func countOf(s, token string) float64 {
	return float64(strings.Count(s, token))
}

// textLength counts UTF-16 code units, the unit browsers report URL lengths in.
func textLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func abnormalURL(rawURL, host string, parsed bool) float64 {
	if !parsed {
		return 1
	}
	return boolFeature(!strings.Contains(rawURL, host))
}

func subdomainCount(host string, parsed bool) float64 {
	if !parsed {
		return 0
	}
	return float64(max(0, strings.Count(host, ".")-1))
}

func noEmbed(u *url.URL, parsed bool) float64 {
	if !parsed {
		return 0
	}
	return countOf(u.EscapedPath(), "//")
}

func digitsAndLetters(s string) (digits, letters float64) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			letters++
		}
	}
	return digits, letters
}

func firstDirLength(u *url.URL, parsed bool) float64 {
	if !parsed {
		return 0
	}
	parts := strings.Split(u.EscapedPath(), "/")
	if len(parts) > 1 {
		return float64(textLength(parts[1]))
	}
	return 0
}

func tldLength(host string, parsed bool) float64 {
	if !parsed {
		return -1
	}
	parts := strings.Split(host, ".")
	if len(parts) > 1 {
		return float64(textLength(parts[len(parts)-1]))
	}
	return -1
}
