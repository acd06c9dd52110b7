// Package action defines the closed set of tool invocations the agent can
// execute. Decision-service output is parsed into these typed structures at
// the boundary; anything that does not conform is rejected there, so the
// orchestrator never handles loose maps.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/CodeSmith/internal/domain"
)

// Name identifies a tool. The set is closed: adding a tool means adding a
// constant here, a params struct, a Parse case, and a dispatch case.
type Name string

const (
	Read        Name = "read"
	Edit        Name = "edit"
	Create      Name = "create"
	Delete      Name = "delete"
	List        Name = "list"
	Search      Name = "search"
	Diff        Name = "diff"
	RunTests    Name = "run_tests"
	RunCommand  Name = "run_command"
	AskUser     Name = "ask_user"
	ReportError Name = "report_error"
	Finish      Name = "finish"
)

// Names returns all tool names in stable order.
func Names() []Name {
	return []Name{
		Read, Edit, Create, Delete, List, Search, Diff,
		RunTests, RunCommand, AskUser, ReportError, Finish,
	}
}

// Test scopes accepted by run_tests.
const (
	ScopeAll       = "all"
	ScopeDirectory = "directory"
	ScopeFile      = "file"
	ScopeFilter    = "filter"
)

type ReadParams struct {
	Path string `json:"path"`
}

type EditParams struct {
	Path    string `json:"path"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

type CreateParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type DeleteParams struct {
	Path    string `json:"path"`
	Confirm bool   `json:"confirm"`
}

type ListParams struct {
	Path      string `json:"path"`
	Pattern   string `json:"pattern,omitempty"`
	Recursive bool   `json:"recursive,omitempty"`
}

type SearchParams struct {
	Pattern     string `json:"pattern"`
	Path        string `json:"path,omitempty"`
	Regex       bool   `json:"regex,omitempty"`
	FilePattern string `json:"file_pattern,omitempty"`
	IgnoreCase  bool   `json:"ignore_case,omitempty"`
}

type DiffParams struct {
	Path       string `json:"path"`
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
}

type RunTestsParams struct {
	Scope   string `json:"scope,omitempty"`
	Path    string `json:"path,omitempty"`
	Filter  string `json:"filter,omitempty"`
	Timeout int    `json:"timeout,omitempty"` // seconds
}

type RunCommandParams struct {
	Command    string `json:"command"`
	Timeout    int    `json:"timeout,omitempty"` // seconds
	WorkingDir string `json:"working_dir,omitempty"`
}

type AskUserParams struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Default  string   `json:"default,omitempty"`
}

type ReportErrorParams struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type FinishParams struct {
	Success *bool  `json:"success"`
	Message string `json:"message,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Succeeded resolves the success flag; an omitted flag means success.
func (p FinishParams) Succeeded() bool {
	return p.Success == nil || *p.Success
}

// Action is a tagged union: exactly one params pointer is set, matching Name.
// Raw keeps the original parameter JSON for logging and the iteration record.
type Action struct {
	Name Name
	Raw  json.RawMessage

	Read        *ReadParams
	Edit        *EditParams
	Create      *CreateParams
	Delete      *DeleteParams
	List        *ListParams
	Search      *SearchParams
	Diff        *DiffParams
	RunTests    *RunTestsParams
	RunCommand  *RunCommandParams
	AskUser     *AskUserParams
	ReportError *ReportErrorParams
	Finish      *FinishParams
}

// Params returns the populated params struct for logging.
func (a Action) Params() any {
	switch a.Name {
	case Read:
		return a.Read
	case Edit:
		return a.Edit
	case Create:
		return a.Create
	case Delete:
		return a.Delete
	case List:
		return a.List
	case Search:
		return a.Search
	case Diff:
		return a.Diff
	case RunTests:
		return a.RunTests
	case RunCommand:
		return a.RunCommand
	case AskUser:
		return a.AskUser
	case ReportError:
		return a.ReportError
	case Finish:
		return a.Finish
	}
	return nil
}

// Terminal reports whether executing this action ends the task.
func (a Action) Terminal() bool {
	return a.Name == Finish || a.Name == ReportError
}

// Parse decodes one proposed action into its typed form. Unknown tool names,
// unknown parameter fields, wrong types, and missing required parameters are
// all rejected.
func Parse(toolName string, params json.RawMessage) (Action, error) {
	a := Action{Name: Name(toolName), Raw: append(json.RawMessage(nil), params...)}

	switch a.Name {
	case Read:
		p := &ReadParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Path == "" {
			return Action{}, missingErr(a.Name, "path")
		}
		a.Read = p

	case Edit:
		p := &EditParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Path == "" {
			return Action{}, missingErr(a.Name, "path")
		}
		if p.OldText == "" {
			return Action{}, missingErr(a.Name, "old_text")
		}
		a.Edit = p

	case Create:
		p := &CreateParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Path == "" {
			return Action{}, missingErr(a.Name, "path")
		}
		a.Create = p

	case Delete:
		p := &DeleteParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Path == "" {
			return Action{}, missingErr(a.Name, "path")
		}
		a.Delete = p

	case List:
		p := &ListParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Path == "" {
			p.Path = "."
		}
		a.List = p

	case Search:
		p := &SearchParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Pattern == "" {
			return Action{}, missingErr(a.Name, "pattern")
		}
		if p.Path == "" {
			p.Path = "."
		}
		a.Search = p

	case Diff:
		p := &DiffParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Path == "" {
			return Action{}, missingErr(a.Name, "path")
		}
		a.Diff = p

	case RunTests:
		p := &RunTestsParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		switch p.Scope {
		case "":
			p.Scope = ScopeAll
		case ScopeAll:
		case ScopeDirectory, ScopeFile:
			if p.Path == "" {
				return Action{}, missingErr(a.Name, "path")
			}
		case ScopeFilter:
			if p.Filter == "" {
				return Action{}, missingErr(a.Name, "filter")
			}
		default:
			return Action{}, parseErr(a.Name, fmt.Errorf("unknown scope %q", p.Scope))
		}
		a.RunTests = p

	case RunCommand:
		p := &RunCommandParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Command == "" {
			return Action{}, missingErr(a.Name, "command")
		}
		a.RunCommand = p

	case AskUser:
		p := &AskUserParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Question == "" {
			return Action{}, missingErr(a.Name, "question")
		}
		a.AskUser = p

	case ReportError:
		p := &ReportErrorParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		if p.Message == "" {
			return Action{}, missingErr(a.Name, "message")
		}
		if p.Kind == "" {
			p.Kind = "error"
		}
		a.ReportError = p

	case Finish:
		p := &FinishParams{}
		if err := decodeStrict(params, p); err != nil {
			return Action{}, parseErr(a.Name, err)
		}
		a.Finish = p

	default:
		return Action{}, fmt.Errorf("unknown tool %q: %w", toolName, domain.ErrInvalid)
	}

	return a, nil
}

func decodeStrict(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after parameters")
	}
	return nil
}

func parseErr(name Name, err error) error {
	return fmt.Errorf("tool %s parameters: %v: %w", name, err, domain.ErrInvalid)
}

func missingErr(name Name, field string) error {
	return fmt.Errorf("tool %s: missing required parameter %q: %w", name, field, domain.ErrInvalid)
}
