/*
File: url_guard_types.go
Version: 1.0.0
Description: Shared types and constants for the URL Guard classifier.
*/

package main

import "time"

// --- Feature Indexes ---

// Feature indexes into a FeatureVector. The order is canonical and never varies.
const (
	FeatIPExist = iota
	FeatAbnormalURL
	FeatDotCount
	FeatWWWCount
	FeatAtCount
	FeatHyphenCount
	FeatSubdomainCount
	FeatShorteningService
	FeatHTTPSCount
	FeatHTTPCount
	FeatPercentCount
	FeatQueryCount
	FeatEqualCount
	FeatURLLength
	FeatHostnameLength
	FeatNoEmbed
	FeatSuspiciousWords
	FeatDigitCount
	FeatLettersCount
	FeatFDLength
	FeatTLDLength

	FeatureCount
)

// FeatureVector is the fixed-order numeric encoding of a URL.
type FeatureVector [FeatureCount]float64

// --- Classes ---

type ThreatClass string

const (
	ClassBenign     ThreatClass = "benign"
	ClassDefacement ThreatClass = "defacement"
	ClassMalware    ThreatClass = "malware"
	ClassPhishing   ThreatClass = "phishing"
	ClassSuspicious ThreatClass = "suspicious"
)

// scoredClasses is the argmax iteration order. Benign comes first and wins ties.
var scoredClasses = [...]ThreatClass{ClassBenign, ClassDefacement, ClassMalware, ClassPhishing}

// ClassScores holds the unnormalized per-class scores. They do not sum to 1.
type ClassScores map[ThreatClass]float64

// --- Policy Constants ---

const (
	shortURLLength       = 20
	shortURLMaxConf      = 0.8
	shortURLPenalty      = 0.3
	shortURLFloor        = 0.1
	weakSignalMaxConf    = 0.7
	weakSignalFactor     = 0.7
	safeDomainMaxConf    = 0.9
	safeDomainConfidence = 0.1
	suspiciousLow        = 0.4
	suspiciousHigh       = 0.7

	modelUsedTag     = "lightgbm_enhanced"
	modelTypeTag     = "lightgbm_multiclass"
	errModelNotReady = "Model not loaded"
)

// --- Verdict ---

// Verdict is the outcome of a single prediction. It has no identity and is never stored
// by the classifier.
type Verdict struct {
	IsMalicious    bool           `json:"isMalicious"`
	IsSuspicious   bool           `json:"isSuspicious"`
	PredictedClass ThreatClass    `json:"predictedClass,omitempty"`
	ThreatType     ThreatClass    `json:"threatType,omitempty"`
	Confidence     float64        `json:"confidence"`
	Score          int            `json:"score"`
	ModelUsed      string         `json:"modelUsed,omitempty"`
	Features       *FeatureVector `json:"features,omitempty"`
	RawScores      ClassScores    `json:"rawScores,omitempty"`
	Timestamp      time.Time      `json:"timestamp,omitzero"`
	Error          string         `json:"error,omitempty"`
}

// notReadyVerdict is returned while the scoring tables are not available.
// Callers must treat it as "unknown, do not block".
func notReadyVerdict() Verdict {
	return Verdict{
		IsMalicious:  false,
		IsSuspicious: false,
		Error:        errModelNotReady,
		Score:        0,
	}
}
