/*
File: url_guard.go
Version: 1.0.0
Description: Classifier construction, model info loading and the prediction pipeline.
             A classifier is either ready or not ready from the moment it is built; the
             handle swaps in a ready one once the startup load completes.
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ModelInfo mirrors the packaged model_info.json resource.
type ModelInfo struct {
	ModelType    string    `json:"model_type,omitempty"`
	FeatureNames []string  `json:"feature_names"`
	ClassNames   []string  `json:"class_names"`
	Importances  []float64 `json:"feature_importances_normalized,omitempty"`
	Fallback     bool      `json:"-"`
}

// FallbackModelInfo is the built-in model used when the resource cannot be loaded.
func FallbackModelInfo() *ModelInfo {
	return &ModelInfo{
		ModelType:    modelTypeTag,
		FeatureNames: featureNames[:],
		ClassNames:   classNames,
		Importances:  fallbackImportances,
		Fallback:     true,
	}
}

// Classifier scores URLs. It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	model *ModelInfo
}

// NewClassifier builds a classifier over the given model. A nil model yields a classifier
// that is not ready and answers every prediction with the not-ready verdict.
func NewClassifier(model *ModelInfo) *Classifier {
	return &Classifier{model: model}
}

func (c *Classifier) IsReady() bool {
	return c != nil && c.model != nil
}

// Predict runs the full pipeline: extract, normalize, score, argmax, overrides.
func (c *Classifier) Predict(rawURL string) Verdict {
	if !c.IsReady() {
		return notReadyVerdict()
	}

	raw := ExtractFeatures(rawURL)
	normalized := NormalizeFeatures(raw)
	scores := ScoreClasses(normalized)

	predicted, confidence := argmaxClass(scores)
	outcome := applyOverrides(rawURL, raw, predicted, confidence)

	if IsDebugEnabled() {
		LogDebug("[URL-GUARD] %s | Scores: %v | Argmax: %s (%.4f) -> %s (%.4f)",
			truncate(rawURL, 80), scores, predicted, confidence, outcome.Class, outcome.Confidence)
	}

	return Verdict{
		IsMalicious:    outcome.IsMalicious,
		IsSuspicious:   outcome.IsSuspicious,
		PredictedClass: outcome.Class,
		ThreatType:     outcome.Class,
		Confidence:     outcome.Confidence,
		Score:          outcome.Score,
		ModelUsed:      modelUsedTag,
		Features:       &normalized,
		RawScores:      scores,
		Timestamp:      time.Now().UTC(),
	}
}

// FeatureReport is the diagnostic view of a URL's features.
type FeatureReport struct {
	Features     FeatureVector `json:"features"`
	Normalized   FeatureVector `json:"normalized"`
	FeatureNames []string      `json:"featureNames"`
}

// InspectFeatures exposes extraction and normalization separately for diagnostics.
func (c *Classifier) InspectFeatures(rawURL string) (FeatureReport, error) {
	if !c.IsReady() {
		return FeatureReport{}, errors.New(errModelNotReady)
	}
	raw := ExtractFeatures(rawURL)
	return FeatureReport{
		Features:     raw,
		Normalized:   NormalizeFeatures(raw),
		FeatureNames: c.model.FeatureNames,
	}, nil
}

// ModelStatus describes the loaded model.
type ModelStatus struct {
	IsLoaded     bool      `json:"isLoaded"`
	ModelType    string    `json:"modelType"`
	FeatureCount int       `json:"featureCount"`
	Fallback     bool      `json:"fallback"`
	Importances  []float64 `json:"importances,omitempty"`
}

func (c *Classifier) Status() ModelStatus {
	if !c.IsReady() {
		return ModelStatus{ModelType: modelUsedTag}
	}
	return ModelStatus{
		IsLoaded:     true,
		ModelType:    modelUsedTag,
		FeatureCount: len(c.model.Importances),
		Fallback:     c.model.Fallback,
		Importances:  c.model.Importances,
	}
}

// --- Model Loading ---

// LoadModelInfo reads the model info resource from a file or URL. Missing importances are
// replaced by the default table; a wrong feature count is rejected.
func LoadModelInfo(ctx context.Context, cfg ModelConfig) (*ModelInfo, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case cfg.InfoFile != "":
		data, err = os.ReadFile(cfg.InfoFile)
	case cfg.InfoURL != "":
		data, err = fetchModelInfo(ctx, cfg.InfoURL)
	default:
		return nil, errors.New("no model info source configured")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}

	var info ModelInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse model info: %w", err)
	}

	if len(info.Importances) == 0 {
		info.Importances = defaultImportances
	}
	if len(info.Importances) != FeatureCount {
		return nil, fmt.Errorf("model info has %d importances, want %d", len(info.Importances), FeatureCount)
	}
	if len(info.FeatureNames) == 0 {
		info.FeatureNames = featureNames[:]
	}
	if len(info.ClassNames) == 0 {
		info.ClassNames = classNames
	}
	if info.ModelType == "" {
		info.ModelType = modelTypeTag
	}
	return &info, nil
}

func fetchModelInfo(ctx context.Context, infoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// ClassifierHandle hands out the current classifier while the model loads in the
// background. Collaborators hold the handle, not a global.
type ClassifierHandle struct {
	current atomic.Pointer[Classifier]
	done    chan struct{}
	once    sync.Once
}

// NewClassifierHandle returns a handle whose classifier is not ready yet.
func NewClassifierHandle() *ClassifierHandle {
	h := &ClassifierHandle{done: make(chan struct{})}
	h.current.Store(NewClassifier(nil))
	return h
}

// ReadyHandle wraps an already built classifier.
func ReadyHandle(c *Classifier) *ClassifierHandle {
	h := NewClassifierHandle()
	h.publish(c)
	return h
}

// Current never returns nil. Check IsReady before trusting non-error verdict fields.
func (h *ClassifierHandle) Current() *Classifier {
	return h.current.Load()
}

func (h *ClassifierHandle) publish(c *Classifier) {
	h.current.Store(c)
	h.once.Do(func() { close(h.done) })
}

// Wait blocks until the startup load has finished, successfully or not.
func (h *ClassifierHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load performs the one-time startup load asynchronously. On failure the fallback model is
// installed unless fallback is switched off, in which case the classifier stays not ready.
func (h *ClassifierHandle) Load(ctx context.Context, cfg ModelConfig) {
	go func() {
		timeout := cfg.parsedLoadTimeout
		if timeout <= 0 {
			timeout = defaultModelLoadTimeout
		}
		loadCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		info, err := LoadModelInfo(loadCtx, cfg)
		switch {
		case err == nil:
			LogInfo("[URL-GUARD] Model info loaded (Type: %s, Features: %d)", info.ModelType, len(info.Importances))
			h.publish(NewClassifier(info))
		case cfg.fallbackEnabled():
			LogWarn("[URL-GUARD] Error loading model: %v. Using fallback model", err)
			h.publish(NewClassifier(FallbackModelInfo()))
		default:
			LogError("[URL-GUARD] Error loading model: %v. Classifier stays not ready", err)
			h.publish(NewClassifier(nil))
		}
	}()
}
