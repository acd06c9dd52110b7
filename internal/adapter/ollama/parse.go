package ollama

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
	"github.com/Strob0t/CodeSmith/internal/port/decision"
)

// wireProposal is the envelope the model is asked to produce. Smaller models
// drift between tool_name/parameters and tool/params, so both spellings are
// accepted here; the per-tool parameter parsing stays strict.
type wireProposal struct {
	Reasoning string       `json:"reasoning"`
	Actions   []wireAction `json:"actions"`
}

type wireAction struct {
	ToolName   string          `json:"tool_name"`
	Tool       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters"`
	Params     json.RawMessage `json:"params"`
}

// parseProposal extracts a typed proposal from the raw model output. The
// ladder: strip code fences, strict parse, jsonrepair, then the outermost
// brace span. Anything still unparseable is a protocol violation.
func parseProposal(raw string) (*decision.Proposal, error) {
	cleaned := stripFences(raw)

	wire, err := parseEnvelope(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", decision.ErrMalformed, err)
	}

	actions := make([]action.Action, 0, len(wire.Actions))
	for i, wa := range wire.Actions {
		name := wa.ToolName
		if name == "" {
			name = wa.Tool
		}
		if name == "" {
			return nil, fmt.Errorf("%w: action %d has no tool name", decision.ErrMalformed, i)
		}
		params := wa.Parameters
		if len(params) == 0 {
			params = wa.Params
		}
		a, err := action.Parse(name, params)
		if err != nil {
			return nil, fmt.Errorf("%w: action %d: %v", decision.ErrMalformed, i, err)
		}
		actions = append(actions, a)
	}

	return &decision.Proposal{
		Reasoning: wire.Reasoning,
		Actions:   actions,
		Raw:       raw,
	}, nil
}

func parseEnvelope(s string) (*wireProposal, error) {
	var wire wireProposal
	if err := json.Unmarshal([]byte(s), &wire); err == nil {
		return &wire, nil
	}

	if repaired, err := jsonrepair.JSONRepair(s); err == nil {
		if err := json.Unmarshal([]byte(repaired), &wire); err == nil {
			return &wire, nil
		}
	}

	if span := braceSpan(s); span != "" {
		if err := json.Unmarshal([]byte(span), &wire); err == nil {
			return &wire, nil
		}
		if repaired, err := jsonrepair.JSONRepair(span); err == nil {
			if err := json.Unmarshal([]byte(repaired), &wire); err == nil {
				return &wire, nil
			}
		}
	}

	return nil, fmt.Errorf("no JSON object found in %d-byte response", len(s))
}

// stripFences removes markdown code fences the model wraps around JSON
// despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// braceSpan returns the text between the first '{' and the last '}', or ""
// when no such span exists.
func braceSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
