package services

import (
	"strings"
	"testing"

	"visual-analysis-service/internal/models"
)

func TestSystemPrompt_Deterministic(t *testing.T) {
	for _, mode := range models.Modes {
		a := SystemPrompt(mode, false)
		b := SystemPrompt(mode, false)
		if a != b {
			t.Errorf("mode %s: prompt is not deterministic", mode)
		}
		if a == "" {
			t.Errorf("mode %s: empty prompt", mode)
		}
	}
}

func TestSystemPrompt_EmbedsOutputExample(t *testing.T) {
	for _, mode := range models.Modes {
		prompt := SystemPrompt(mode, false)
		if !strings.Contains(prompt, `"analysis"`) {
			t.Errorf("mode %s: prompt should embed a literal output example", mode)
		}
		if !strings.Contains(prompt, "single JSON object") {
			t.Errorf("mode %s: prompt should demand JSON-only output", mode)
		}
	}
}

func TestSystemPrompt_FastModeIsShorterAndDirective(t *testing.T) {
	for _, mode := range models.Modes {
		full := SystemPrompt(mode, false)
		fast := SystemPrompt(mode, true)
		if !strings.Contains(fast, "FAST MODE") {
			t.Errorf("mode %s: fast prompt missing brevity directive", mode)
		}
		if strings.Contains(full, "FAST MODE") {
			t.Errorf("mode %s: full prompt should not carry the brevity directive", mode)
		}
		// Fast mode drops the elaboration section; the brevity directive is
		// far smaller than what it replaces.
		if len(fast) >= len(full) {
			t.Errorf("mode %s: fast prompt (%d) not shorter than full (%d)", mode, len(fast), len(full))
		}
	}
}

func TestSystemPrompt_ComponentIdentifyIsLargest(t *testing.T) {
	component := len(SystemPrompt(models.ModeComponentIdentify, false))
	for _, mode := range []string{models.ModeFaultDiagnosis, models.ModeWiringInstruction, models.ModeInstallationVerify} {
		if other := len(SystemPrompt(mode, false)); component <= other {
			t.Errorf("component prompt (%d) should exceed %s prompt (%d)", component, mode, other)
		}
	}
	prompt := SystemPrompt(models.ModeComponentIdentify, false)
	for _, marker := range []string{"MANUFACTURERS", "CONFIDENCE SCALE", "Hager"} {
		if !strings.Contains(prompt, marker) {
			t.Errorf("component prompt missing knowledge base marker %q", marker)
		}
	}
}

func TestUserPrompt_FocusAreas(t *testing.T) {
	prompt := UserPrompt(models.ModeFaultDiagnosis, false, []string{"consumer unit", "earthing"})
	if !strings.Contains(prompt, "consumer unit, earthing") {
		t.Errorf("focus areas not joined into prompt: %q", prompt)
	}

	empty := UserPrompt(models.ModeFaultDiagnosis, false, nil)
	if !strings.Contains(empty, "general") {
		t.Errorf("empty focus areas should fall back to general: %q", empty)
	}
}

func TestUserPrompt_FastFlag(t *testing.T) {
	fast := UserPrompt(models.ModeComponentIdentify, true, nil)
	full := UserPrompt(models.ModeComponentIdentify, false, nil)
	if !strings.Contains(fast, "brief") {
		t.Errorf("fast user prompt missing brevity directive: %q", fast)
	}
	if !strings.Contains(full, "thorough") {
		t.Errorf("full user prompt missing detail directive: %q", full)
	}
}
