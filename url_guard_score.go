/*
File: url_guard_score.go
Version: 1.0.0
Description: Normalization and per-class rule scoring.
*/

package main

import "math"

// NormalizeFeatures rescales every feature by its ceiling and caps it at 1.
// There is no lower clamp: a tld_length of -1 normalizes to -0.05 and flows into scoring
// unchanged.
func NormalizeFeatures(f FeatureVector) FeatureVector {
	var n FeatureVector
	for i, v := range f {
		n[i] = v
		if ceiling := normalizationCeilings[i]; ceiling > 0 {
			n[i] = math.Min(v/ceiling, 1)
		}
	}
	return n
}

// ScoreClass evaluates one class rule over a normalized vector. The result is capped at 1
// but never floored.
func ScoreClass(n FeatureVector, class ThreatClass) float64 {
	var score float64
	for _, term := range classRules[class] {
		if term.Gated {
			if n[term.Feature] == 0 {
				score += term.Weight
			}
			continue
		}
		score += n[term.Feature] * term.Weight
	}
	return math.Min(score, 1)
}

func ScoreClasses(n FeatureVector) ClassScores {
	scores := make(ClassScores, len(scoredClasses))
	for _, class := range scoredClasses {
		scores[class] = ScoreClass(n, class)
	}
	return scores
}

// argmaxClass picks the highest score. Only a strictly greater score displaces the
// current holder, so ties resolve to the earliest class and benign wins by default.
func argmaxClass(scores ClassScores) (ThreatClass, float64) {
	best := ClassBenign
	bestScore := scores[ClassBenign]
	for _, class := range scoredClasses {
		if s := scores[class]; s > bestScore {
			best = class
			bestScore = s
		}
	}
	return best, bestScore
}
