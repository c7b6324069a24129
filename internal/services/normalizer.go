package services

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"visual-analysis-service/internal/models"
)

// Default fill values for component identification. Downstream rendering
// assumes every documented field is present, so nothing is left undefined.
const (
	defaultComponentName = "Unknown Component"
	defaultUnknown       = "Unknown"
	defaultNotSpecified  = "Not specified"
	defaultFixGuidance   = "Consult a qualified electrician to investigate and remedy this issue."
)

// Candidate-list field names the model has been observed to use instead of
// the expected nested component object.
var componentListFields = []string{
	"components",
	"component_candidates",
	"candidate_components",
	"matches",
}

// Field names that indicate component data was flattened directly onto the
// analysis object with no nesting.
var componentishFields = []string{
	"name",
	"component_type",
	"category",
	"manufacturer",
	"model_number",
	"specifications",
	"voltage_rating",
	"current_rating",
	"purpose",
	"installation_notes",
	"common_applications",
	"bs7671_references",
	"safety_notes",
}

// SchemaNormalizer reshapes whatever object the parser recovered into the
// guaranteed output contract for each mode.
type SchemaNormalizer struct {
	logger *zap.Logger
}

// NewSchemaNormalizer creates a new schema normalizer.
func NewSchemaNormalizer(logger *zap.Logger) *SchemaNormalizer {
	return &SchemaNormalizer{logger: logger}
}

// Normalize applies the universal analysis wrapping plus the mode-specific
// guarantees. It never fails: unrecognised shapes degrade to best-effort.
func (n *SchemaNormalizer) Normalize(parsed interface{}, settings *models.AnalysisSettings) map[string]interface{} {
	analysis := ensureAnalysisEnvelope(parsed)

	switch settings.Mode {
	case models.ModeFaultDiagnosis:
		n.normalizeFaultDiagnosis(analysis, settings.ConfidenceThreshold)
	case models.ModeComponentIdentify:
		n.normalizeComponentIdentify(analysis)
	}
	// wiring_instruction and installation_verify pass through: their prompts
	// embed an example the model follows closely enough that ad hoc recovery
	// is not justified.

	return analysis
}

// ensureAnalysisEnvelope guarantees the result is an object with everything
// under an "analysis" key. A parsed value that already has one is used as-is;
// anything else is wrapped whole.
func ensureAnalysisEnvelope(parsed interface{}) map[string]interface{} {
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return map[string]interface{}{"analysis": map[string]interface{}{"value": parsed}}
	}
	if _, ok := obj["analysis"].(map[string]interface{}); ok {
		return obj
	}
	if _, present := obj["analysis"]; present {
		// An "analysis" key holding a non-object still gets wrapped so the
		// invariant holds.
		return map[string]interface{}{"analysis": obj}
	}
	return map[string]interface{}{"analysis": obj}
}

func analysisObject(result map[string]interface{}) map[string]interface{} {
	if inner, ok := result["analysis"].(map[string]interface{}); ok {
		return inner
	}
	inner := map[string]interface{}{}
	result["analysis"] = inner
	return inner
}

// normalizeFaultDiagnosis guarantees analysis.findings exists with every
// required sub-field, then filters findings below the confidence threshold.
func (n *SchemaNormalizer) normalizeFaultDiagnosis(result map[string]interface{}, threshold float64) {
	analysis := analysisObject(result)

	rawFindings, _ := analysis["findings"].([]interface{})
	findings := make([]interface{}, 0, len(rawFindings))

	for _, raw := range rawFindings {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		finding := normalizeFinding(obj)
		confidence, _ := asFloat(finding["confidence"])
		if confidence < threshold {
			continue
		}
		findings = append(findings, finding)
	}

	analysis["findings"] = findings
}

// normalizeFinding fills every required finding field, falling back to the
// legacy field names the model sometimes emits.
func normalizeFinding(obj map[string]interface{}) map[string]interface{} {
	if _, ok := obj["description"].(string); !ok {
		obj["description"] = "No description provided"
	}

	if !isValidEICRCode(obj["eicr_code"]) {
		if legacy, ok := obj["severity"].(string); ok && isValidEICRCode(legacy) {
			obj["eicr_code"] = legacy
		} else {
			obj["eicr_code"] = models.EICRCodeFI
		}
	}

	if _, ok := asFloat(obj["confidence"]); !ok {
		obj["confidence"] = 0.5
	}

	if clauses := asStringList(obj["bs7671_clauses"]); len(clauses) > 0 {
		obj["bs7671_clauses"] = clauses
	} else if legacy := asStringList(obj["regulation_reference"]); len(legacy) > 0 {
		obj["bs7671_clauses"] = legacy
	} else {
		obj["bs7671_clauses"] = []interface{}{"N/A"}
	}

	if _, ok := obj["fix_guidance"].(string); !ok {
		if legacy, ok := obj["remedial_action"].(string); ok {
			obj["fix_guidance"] = legacy
		} else {
			obj["fix_guidance"] = defaultFixGuidance
		}
	}

	return obj
}

func isValidEICRCode(v interface{}) bool {
	code, ok := v.(string)
	if !ok {
		return false
	}
	switch code {
	case models.EICRCodeC1, models.EICRCodeC2, models.EICRCodeC3, models.EICRCodeFI:
		return true
	}
	return false
}

// componentRecognizer detects one of the shapes the model returns component
// data in and extracts the component object from it.
type componentRecognizer struct {
	name      string
	recognize func(analysis map[string]interface{}) (map[string]interface{}, bool)
}

var componentRecognizers = []componentRecognizer{
	{"nested_component", func(analysis map[string]interface{}) (map[string]interface{}, bool) {
		comp, ok := analysis["component"].(map[string]interface{})
		return comp, ok
	}},
	{"candidate_list", func(analysis map[string]interface{}) (map[string]interface{}, bool) {
		for _, field := range componentListFields {
			list, ok := analysis[field].([]interface{})
			if !ok || len(list) == 0 {
				continue
			}
			best := bestCandidate(list)
			if best != nil {
				delete(analysis, field)
				return best, true
			}
		}
		return nil, false
	}},
	{"flattened_fields", func(analysis map[string]interface{}) (map[string]interface{}, bool) {
		for _, field := range componentishFields {
			if _, present := analysis[field]; present {
				comp := map[string]interface{}{}
				for k, v := range analysis {
					comp[k] = v
					delete(analysis, k)
				}
				return comp, true
			}
		}
		return nil, false
	}},
}

// normalizeComponentIdentify guarantees analysis.component is a single
// normalized object, recovering from the list and flattened shapes the model
// is known to produce. An unrecognised shape is left as-is: a best-effort
// object is better UX than a hard failure.
func (n *SchemaNormalizer) normalizeComponentIdentify(result map[string]interface{}) {
	analysis := analysisObject(result)

	for _, rec := range componentRecognizers {
		comp, ok := rec.recognize(analysis)
		if !ok {
			continue
		}
		n.logger.Info("Component shape recognised", zap.String("shape", rec.name))
		analysis["component"] = normalizeComponent(comp)
		return
	}

	n.logger.Warn("Unrecognised component response shape",
		zap.Strings("keys", sortedKeys(analysis)),
	)
}

// bestCandidate picks the highest-confidence object from a candidate list.
func bestCandidate(list []interface{}) map[string]interface{} {
	var best map[string]interface{}
	bestConf := math.Inf(-1)
	for _, raw := range list {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		conf, _ := asFloat(obj["confidence"])
		if best == nil || conf > bestConf {
			best = obj
			bestConf = conf
		}
	}
	return best
}

// normalizeComponent rescales confidence to the 0-100 integer scale and
// defaults every documented field.
func normalizeComponent(comp map[string]interface{}) map[string]interface{} {
	conf, ok := asFloat(comp["confidence"])
	if !ok {
		conf = 0
	}
	comp["confidence"] = normalizeConfidenceScale(conf)

	stringDefaults := map[string]string{
		"name":               defaultComponentName,
		"component_type":     defaultUnknown,
		"category":           defaultUnknown,
		"manufacturer":       defaultUnknown,
		"model_number":       defaultNotSpecified,
		"specifications":     defaultNotSpecified,
		"voltage_rating":     defaultNotSpecified,
		"current_rating":     defaultNotSpecified,
		"purpose":            defaultNotSpecified,
		"installation_notes": defaultNotSpecified,
		"safety_notes":       "",
	}
	for field, def := range stringDefaults {
		if _, ok := comp[field].(string); !ok {
			comp[field] = def
		}
	}

	for _, field := range []string{"common_applications", "bs7671_references"} {
		if list := asStringList(comp[field]); list != nil {
			comp[field] = list
		} else {
			comp[field] = []interface{}{}
		}
	}

	return comp
}

// normalizeConfidenceScale maps a confidence value onto 0-100 integers.
// Values in (0, 1] are treated as fractions and rescaled; everything else is
// assumed to already be a percentage. A genuine confidence of exactly 1 is
// therefore read as 100%, not 1% — the documented resolution of an inherited
// ambiguity. Out-of-range values clamp to [0, 100].
func normalizeConfidenceScale(v float64) int {
	if v > 0 && v <= 1 {
		v *= 100
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return int(math.Round(v))
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// asStringList returns v as a non-empty []interface{} of values, accepting a
// bare string as a one-element list. Returns nil when v is neither.
func asStringList(v interface{}) []interface{} {
	switch val := v.(type) {
	case []interface{}:
		return val
	case string:
		if val == "" {
			return nil
		}
		return []interface{}{val}
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
