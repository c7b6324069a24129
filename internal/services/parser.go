package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"visual-analysis-service/internal/apperrors"
)

// Parse strategy names, recorded per successful parse so operators can see
// which recovery path fires most often as the upstream model's formatting
// drifts.
const (
	StrategyDirect          = "direct"
	StrategyJSONFence       = "json_fence"
	StrategyBareFence       = "bare_fence"
	StrategyProseThenObject = "prose_then_object"
	StrategyNestedBraces    = "nested_braces"
	StrategyGreedyBraces    = "greedy_braces"
)

var (
	reJSONFence = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)```")
	reBareFence = regexp.MustCompile("(?s)```\\s*\\n?(.*?)```")
	// Non-greedy prefix, then everything from the first brace to the last.
	reProseThenObject = regexp.MustCompile(`(?s)^.*?(\{.*\})`)
	// One level of nested objects, recoverable amid surrounding prose.
	// Deeper nesting falls through to the greedy fallback.
	reNestedBraces = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

// extractStrategy is one (pattern, extractor) pair of the recovery cascade.
type extractStrategy struct {
	name    string
	extract func(string) (string, bool)
}

// Ordering: fenced-block patterns catch the common "valid JSON wrapped in
// markdown or chatty prose" case cheaply; the nested-brace pattern recovers
// clean JSON amid prose without fences; the greedy fallback accepts some risk
// of trailing garbage and is strictly the last resort.
var extractStrategies = []extractStrategy{
	{StrategyJSONFence, func(text string) (string, bool) {
		if m := reJSONFence.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1]), true
		}
		return "", false
	}},
	{StrategyBareFence, func(text string) (string, bool) {
		if m := reBareFence.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1]), true
		}
		return "", false
	}},
	{StrategyProseThenObject, func(text string) (string, bool) {
		if m := reProseThenObject.FindStringSubmatch(text); len(m) > 1 {
			return m[1], true
		}
		return "", false
	}},
	{StrategyNestedBraces, func(text string) (string, bool) {
		if m := reNestedBraces.FindString(text); m != "" {
			return m, true
		}
		return "", false
	}},
	{StrategyGreedyBraces, func(text string) (string, bool) {
		start := strings.IndexByte(text, '{')
		end := strings.LastIndexByte(text, '}')
		if start >= 0 && end > start {
			return text[start : end+1], true
		}
		return "", false
	}},
}

// ResponseParser recovers a JSON value from arbitrary model output.
type ResponseParser struct {
	logger *zap.Logger
}

// NewResponseParser creates a new response parser.
func NewResponseParser(logger *zap.Logger) *ResponseParser {
	return &ResponseParser{logger: logger}
}

// Parse attempts each recovery strategy in order, stopping at the first one
// whose extraction parses as JSON. The logCtx string identifies the caller in
// diagnostics. Returns the parsed value, the name of the strategy that fired,
// and a typed error only after every strategy is exhausted.
func (p *ResponseParser) Parse(text, logCtx string) (interface{}, string, error) {
	if strings.TrimSpace(text) == "" {
		p.logger.Warn("Parse input empty", zap.String("context", logCtx))
		return nil, "", apperrors.NewUnparseableEmpty()
	}

	if value, ok := p.tryParse(text, StrategyDirect, logCtx); ok {
		return value, StrategyDirect, nil
	}

	for _, strat := range extractStrategies {
		candidate, matched := strat.extract(text)
		if !matched {
			p.logger.Debug("Parse strategy no match",
				zap.String("context", logCtx),
				zap.String("strategy", strat.name),
			)
			continue
		}
		if value, ok := p.tryParse(candidate, strat.name, logCtx); ok {
			return value, strat.name, nil
		}
	}

	p.logger.Error("All parse strategies exhausted",
		zap.String("context", logCtx),
		zap.String("preview", preview(text, 200)),
	)
	return nil, "", apperrors.NewUnparseable(nil)
}

func (p *ResponseParser) tryParse(candidate, strategy, logCtx string) (interface{}, bool) {
	var value interface{}
	err := json.Unmarshal([]byte(candidate), &value)
	p.logger.Debug("Parse attempt",
		zap.String("context", logCtx),
		zap.String("strategy", strategy),
		zap.String("preview", preview(candidate, 120)),
		zap.Bool("ok", err == nil),
	)
	if err != nil {
		return nil, false
	}
	return value, true
}
