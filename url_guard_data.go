/*
File: url_guard_data.go
Version: 1.0.0
Description: Static tables for the URL Guard engine: feature names, normalization ceilings,
             per-class rule weights, shortener/keyword lists and the safe domain patterns.
             Kept apart from the scoring code so each table can be tested on its own.
*/

package main

import (
	"regexp"
	"strings"
)

// --- 1. Feature Names (canonical order) ---
var featureNames = [FeatureCount]string{
	"ip_exist", "abnormal_url", "dot_count", "www_count", "at_count",
	"hyphen_count", "subdomain_count", "shortening_service", "https_count",
	"http_count", "percent_count", "query_count", "equal_count",
	"url_length", "hostname_length", "no_embed", "suspicious_words",
	"digit_count", "letters_count", "fd_length", "tld_length",
}

var classNames = []string{
	string(ClassBenign), string(ClassDefacement), string(ClassMalware), string(ClassPhishing),
}

// --- 2. Normalization Ceilings ---
// Binary features use 1.
var normalizationCeilings = [FeatureCount]float64{
	FeatIPExist:           1,
	FeatAbnormalURL:       1,
	FeatDotCount:          15,
	FeatWWWCount:          3,
	FeatAtCount:           2,
	FeatHyphenCount:       10,
	FeatSubdomainCount:    8,
	FeatShorteningService: 1,
	FeatHTTPSCount:        2,
	FeatHTTPCount:         2,
	FeatPercentCount:      5,
	FeatQueryCount:        10,
	FeatEqualCount:        10,
	FeatURLLength:         200,
	FeatHostnameLength:    100,
	FeatNoEmbed:           3,
	FeatSuspiciousWords:   1,
	FeatDigitCount:        50,
	FeatLettersCount:      150,
	FeatFDLength:          50,
	FeatTLDLength:         20,
}

// --- 3. Class Rules ---

// scoreTerm is one entry of a class rule. A gated term adds Weight when the normalized
// feature is exactly zero; an ungated term adds feature*Weight.
type scoreTerm struct {
	Feature int
	Weight  float64
	Gated   bool
}

// classRules lists each class's terms in summation order.
var classRules = map[ThreatClass][]scoreTerm{
	ClassBenign: {
		{Feature: FeatIPExist, Weight: 0.30, Gated: true},
		{Feature: FeatAtCount, Weight: 0.25, Gated: true},
		{Feature: FeatShorteningService, Weight: 0.20, Gated: true},
		{Feature: FeatSuspiciousWords, Weight: 0.25, Gated: true},
	},
	ClassDefacement: {
		{Feature: FeatDotCount, Weight: 0.4},
		{Feature: FeatSubdomainCount, Weight: 0.3},
		{Feature: FeatURLLength, Weight: 0.2},
		{Feature: FeatHyphenCount, Weight: 0.1},
	},
	ClassMalware: {
		{Feature: FeatIPExist, Weight: 0.5},
		{Feature: FeatAbnormalURL, Weight: 0.3},
		{Feature: FeatURLLength, Weight: 0.15},
		{Feature: FeatDigitCount, Weight: 0.05},
	},
	ClassPhishing: {
		{Feature: FeatSuspiciousWords, Weight: 0.4},
		{Feature: FeatShorteningService, Weight: 0.3},
		{Feature: FeatAtCount, Weight: 0.2},
		{Feature: FeatPercentCount, Weight: 0.05},
		{Feature: FeatQueryCount, Weight: 0.05},
	},
}

// strongIndicators are the raw features counted by the weak-signal rule.
var strongIndicators = []int{FeatIPExist, FeatShorteningService, FeatSuspiciousWords}

// --- 4. Feature Importances (diagnostics only) ---

// defaultImportances is used when a model info file carries no importances.
var defaultImportances = []float64{
	0.15, 0.10, 0.05, 0.02, 0.12,
	0.04, 0.03, 0.18, 0.01, 0.01,
	0.03, 0.02, 0.02, 0.03, 0.02,
	0.01, 0.14, 0.02, 0.01, 0.01, 0.01,
}

// fallbackImportances belongs to the built-in model used when loading fails.
var fallbackImportances = []float64{
	0.12, 0.08, 0.04, 0.01, 0.10,
	0.03, 0.02, 0.15, 0.01, 0.01,
	0.02, 0.02, 0.02, 0.03, 0.02,
	0.01, 0.12, 0.02, 0.01, 0.01, 0.01,
}

// --- 5. URL Shortening Services ---
var shortenerDomains = []string{
	"bit.ly", "goo.gl", "shorte.st", "go2l.ink", "x.co", "ow.ly", "t.co", "tinyurl",
	"tr.im", "is.gd", "cli.gs", "yfrog.com", "migre.me", "ff.im", "tiny.cc", "url4.eu",
	"twit.ac", "su.pr", "twurl.nl", "snipurl.com", "short.to", "BudURL.com", "ping.fm",
	"post.ly", "Just.as", "bkite.com", "snipr.com", "fic.kr", "loopt.us", "doiop.com",
	"shortie.de", "kl.am", "wp.me", "rubyurl.com", "om.ly", "to.ly", "bit.do",
	"t2mio.com", "lnkd.in", "db.tt", "qr.ae", "adf.ly", "bitly.com", "curtly.cc",
	"tinyurl.com", "owly.com", "bitlyisgud.com",
}

// --- 6. Phishing Keywords ---
var suspiciousKeywords = []string{
	"confirm", "account", "secure", "webscr", "login", "ebayisapi", "signin", "banking",
	"update", "free", "lucky", "bonus", "click", "verify", "password", "limited",
	"urgent", "security", "alert", "immediate", "important", "request", "validate",
}

// --- 7. Known Safe Domains ---
// Patterns are matched against the lowercased hostname.
var safeDomainPatterns = []string{
	`\.google\.`,
	`\.youtube\.`,
	`\.github\.`,
	`\.wikipedia\.`,
	`\.microsoft\.`,
	`\.apple\.`,
	`\.amazon\.`,
	`\.facebook\.`,
	`\.twitter\.`,
	`\.linkedin\.`,
}

// --- Compiled Matchers ---

var (
	ipv4Pattern       = regexp.MustCompile(`(([01]?\d\d?|2[0-4]\d|25[0-5])\.([01]?\d\d?|2[0-4]\d|25[0-5])\.([01]?\d\d?|2[0-4]\d|25[0-5])\.([01]?\d\d?|2[0-4]\d|25[0-5]))`)
	shortenerPattern  = compileAlternation(shortenerDomains, true)
	suspiciousPattern = compileAlternation(suspiciousKeywords, true)
	safeDomainRegexps = compileAll(safeDomainPatterns)
)

func compileAlternation(words []string, foldCase bool) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	expr := strings.Join(quoted, "|")
	if foldCase {
		expr = "(?i)" + expr
	}
	return regexp.MustCompile(expr)
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
