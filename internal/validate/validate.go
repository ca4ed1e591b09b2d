// Package validate produces field-level findings for extracted drafts. It
// never rejects a draft: every problem becomes one finding.
package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/sports-intake/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://intake.local/schemas/"

// Schema returns the JSON schema text describing a kind's draft.
func Schema(kind model.Kind) (string, error) {
	data, err := schemaFS.ReadFile("schemas/" + string(kind) + ".json")
	if err != nil {
		return "", eris.Wrapf(model.ErrInvalidInput, "no schema for kind %q", kind)
	}
	return string(data), nil
}

// Engine validates drafts against compiled schemas and per-kind rules.
type Engine struct {
	schemas map[model.Kind]*jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Engine, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	e := &Engine{schemas: make(map[model.Kind]*jsonschema.Schema, len(model.Kinds))}
	for _, kind := range model.Kinds {
		text, err := Schema(kind)
		if err != nil {
			return nil, err
		}
		url := schemaBase + string(kind) + ".json"
		if err := c.AddResource(url, strings.NewReader(text)); err != nil {
			return nil, eris.Wrapf(err, "validate: add schema %s", kind)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, eris.Wrapf(err, "validate: compile schema %s", kind)
		}
		e.schemas[kind] = s
	}
	return e, nil
}

// Validate returns one finding per violation in draft. It is deterministic
// and has no side effects.
func (e *Engine) Validate(kind model.Kind, draft json.RawMessage) []model.Finding {
	dec := json.NewDecoder(bytes.NewReader(draft))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return []model.Finding{model.NewFinding(model.FindingTypeMismatch, "", "draft is not valid JSON: "+err.Error())}
	}

	var findings []model.Finding
	if s, ok := e.schemas[kind]; ok {
		findings = append(findings, schemaFindings(s, doc)...)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return findings
	}
	switch kind {
	case model.KindScoreSheet:
		findings = append(findings, scoreSheetRules(obj)...)
	case model.KindSchedule:
		findings = append(findings, scheduleRules(obj)...)
	case model.KindRoster:
		findings = append(findings, rosterRules(obj)...)
	}
	return findings
}

// schemaFindings flattens a schema validation error into one type_mismatch
// finding per leaf cause.
func schemaFindings(s *jsonschema.Schema, doc any) []model.Finding {
	err := s.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []model.Finding{model.NewFinding(model.FindingTypeMismatch, "", err.Error())}
	}

	var out []model.Finding
	var walk func(v *jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			path := pointerToPath(v.InstanceLocation)
			msg := v.Message
			if path != "" {
				msg = path + ": " + msg
			}
			out = append(out, model.NewFinding(model.FindingTypeMismatch, path, msg))
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

// pointerToPath converts a JSON pointer such as /games/0/date into games[0].date.
func pointerToPath(ptr string) string {
	if ptr == "" || ptr == "/" {
		return ""
	}
	var b strings.Builder
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(tok); err == nil {
			fmt.Fprintf(&b, "[%s]", tok)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}
