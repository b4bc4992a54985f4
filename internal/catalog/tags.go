package catalog

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/normanking/conductor/internal/llm"
)

var (
	// largeFamilies are model families strong enough for analysis work.
	largeFamilies = []string{
		"llama3", "llama-3", "llama4", "qwen2", "qwen3", "qwq", "mixtral",
		"mistral-large", "deepseek", "gpt-4", "gpt-5", "claude", "gemini",
		"command-r", "grok", "gemma3",
	}

	reasoningModel = regexp.MustCompile(`(^|[^a-z0-9])o[134]([^a-z0-9]|$)|-r1\b`)

	visionMarkers = []string{"vision", "llava", "-vl", "moondream", "minicpm-v"}

	embeddingMarkers = []string{"embed", "nomic", "mxbai", "bge-", "e5-", "gte-"}

	efficientMarkers = []string{"mini", "tiny", "small", "nano", "lite", "haiku", "flash"}

	longContextMarkers = regexp.MustCompile(`\b(32k|64k|128k|200k|1m)\b|long`)

	// "8x7b" mixture-of-experts sizes
	moeSize = regexp.MustCompile(`(\d+)x(\d+(?:\.\d+)?)b\b`)
	// "8b", "1.5b", "70b", "500m"
	denseSize = regexp.MustCompile(`(\d+(?:\.\d+)?)([bm])\b`)
)

// IsEmbeddingModel reports whether a model only produces embeddings.
// Such models are never added to the catalog.
func IsEmbeddingModel(name string) bool {
	return containsAny(strings.ToLower(name), embeddingMarkers)
}

// InferTags derives capability tags from a raw model record and its
// estimated size. The result is sorted and de-duplicated.
func InferTags(raw llm.RawModel, size float64) []string {
	lower := strings.ToLower(raw.Name + " " + raw.Family)
	set := make(map[string]struct{})
	add := func(tags ...string) {
		for _, t := range tags {
			set[t] = struct{}{}
		}
	}

	if strings.Contains(lower, "code") || strings.Contains(lower, "coder") {
		add(TagCodeGeneration, TagCodeAnalysis, TagDebugging)
	}
	if strings.Contains(lower, "chat") || strings.Contains(lower, "instruct") {
		add(TagConversational)
	}
	if containsAny(lower, largeFamilies) || reasoningModel.MatchString(lower) {
		add(TagAnalysis, TagReasoning, TagResearch)
	}
	if containsAny(lower, visionMarkers) {
		add(TagVision)
	}

	if size >= 30 || raw.ContextLength >= 100000 || longContextMarkers.MatchString(lower) {
		add(TagLargeContext)
	}
	if (size > 0 && size <= 4) || (size < 30 && containsAny(lower, efficientMarkers)) {
		add(TagEfficient)
	}

	if len(set) == 0 {
		add(TagGeneral)
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// EstimateSize returns the parameter count in billions. It prefers the
// provider's parameter_size, then size markers in the name, then the
// download size in GB. Unknown sizes return 0.
func EstimateSize(raw llm.RawModel) float64 {
	if s := parseParams(strings.ToLower(raw.ParameterSize)); s > 0 {
		return s
	}
	if s := parseParams(strings.ToLower(raw.Name)); s > 0 {
		return s
	}
	if raw.SizeBytes > 0 {
		return float64(raw.SizeBytes) / 1e9
	}
	return 0
}

func parseParams(s string) float64 {
	if s == "" {
		return 0
	}
	if m := moeSize.FindStringSubmatch(s); m != nil {
		experts, _ := strconv.ParseFloat(m[1], 64)
		each, _ := strconv.ParseFloat(m[2], 64)
		return experts * each
	}
	m := denseSize.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if m[2] == "m" {
		return v / 1000
	}
	return v
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
