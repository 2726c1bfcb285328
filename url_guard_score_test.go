package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFeatures(t *testing.T) {
	var raw FeatureVector
	raw[FeatIPExist] = 1
	raw[FeatURLLength] = 400
	raw[FeatDotCount] = 3
	raw[FeatTLDLength] = -1

	n := NormalizeFeatures(raw)
	assert.Equal(t, 1.0, n[FeatIPExist])
	assert.Equal(t, 1.0, n[FeatURLLength], "capped at 1")
	assert.InDelta(t, 0.2, n[FeatDotCount], 1e-12)
	assert.InDelta(t, -0.05, n[FeatTLDLength], 1e-12, "no lower clamp")
}

func TestScoreClass_ZeroVector(t *testing.T) {
	var n FeatureVector
	assert.InDelta(t, 1.0, ScoreClass(n, ClassBenign), 1e-9)
	assert.Equal(t, 0.0, ScoreClass(n, ClassDefacement))
	assert.Equal(t, 0.0, ScoreClass(n, ClassMalware))
	assert.Equal(t, 0.0, ScoreClass(n, ClassPhishing))
}

func TestScoreClass_CappedAtOne(t *testing.T) {
	var n FeatureVector
	for i := range n {
		n[i] = 1
	}
	for _, c := range scoredClasses {
		assert.LessOrEqual(t, ScoreClass(n, c), 1.0, string(c))
	}
	assert.Equal(t, 0.0, ScoreClass(n, ClassBenign), "every gate is closed")
}

func TestScoreClasses_KeysAreScoredClasses(t *testing.T) {
	scores := ScoreClasses(FeatureVector{})
	assert.Len(t, scores, 4)
	_, hasSuspicious := scores[ClassSuspicious]
	assert.False(t, hasSuspicious)
}

func TestArgmaxClass_TieGoesToBenign(t *testing.T) {
	var n FeatureVector
	n[FeatIPExist] = 0.1
	n[FeatAtCount] = 0.5
	n[FeatSuspiciousWords] = 0.25

	scores := ScoreClasses(n)
	assert.Equal(t, scores[ClassBenign], scores[ClassPhishing])

	class, conf := argmaxClass(scores)
	assert.Equal(t, ClassBenign, class)
	assert.InDelta(t, 0.2, conf, 1e-12)
}

func TestArgmaxClass(t *testing.T) {
	tests := []struct {
		name   string
		scores ClassScores
		want   ThreatClass
	}{
		{"benign tie", ClassScores{ClassBenign: 0.5, ClassPhishing: 0.5}, ClassBenign},
		{"earlier class wins tie", ClassScores{ClassBenign: 0.1, ClassMalware: 0.6, ClassPhishing: 0.6}, ClassMalware},
		{"strict max", ClassScores{ClassBenign: 0.1, ClassDefacement: 0.2, ClassPhishing: 0.3}, ClassPhishing},
		{"all zero", ClassScores{}, ClassBenign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := argmaxClass(tt.scores)
			assert.Equal(t, tt.want, got)
		})
	}
}
