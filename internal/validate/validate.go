// Package validate checks inbound request payloads against named JSON Schemas
// before any business logic runs.
package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/and161185/tasktracker/internal/errs"
)

// Schema names understood by the validator.
const (
	Register = "register"
	Login    = "login"
	Task     = "task"
)

// bodyField labels violations located at the document root.
const bodyField = "body"

//go:embed schemas/*.json
var schemaFS embed.FS

var printer = message.NewPrinter(language.English)

// Validator holds the compiled schemas. Safe for concurrent use.
type Validator struct {
	schemas  map[string]*jsonschema.Schema
	messages map[string]map[string]string // schema -> "field.keyword" -> message
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	v := &Validator{
		schemas:  make(map[string]*jsonschema.Schema, len(entries)),
		messages: make(map[string]map[string]string, len(entries)),
	}
	c := jsonschema.NewCompiler()
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", name, err)
		}
		if err := c.AddResource(e.Name(), doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		sch, err := c.Compile(e.Name())
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = sch
		v.messages[name] = customMessages(doc)
	}
	return v, nil
}

// customMessages reads the optional "x-messages" override table.
func customMessages(doc any) map[string]string {
	out := map[string]string{}
	obj, ok := doc.(map[string]any)
	if !ok {
		return out
	}
	msgs, ok := obj["x-messages"].(map[string]any)
	if !ok {
		return out
	}
	for k, m := range msgs {
		if s, ok := m.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Validate decodes raw JSON and checks it against the named schema.
// Rule violations come back as *errs.ValidationError; anything else is an
// internal fault.
func (v *Validator) Validate(name string, raw []byte) (any, error) {
	sch, ok := v.schemas[name]
	if !ok {
		return nil, fmt.Errorf("validate: unknown schema %q", name)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, &errs.ValidationError{Fields: []errs.FieldError{{Field: bodyField, Message: "Invalid JSON"}}}
	}
	err = sch.Validate(doc)
	if err == nil {
		return doc, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	return nil, &errs.ValidationError{Fields: v.collect(name, ve)}
}

// Decode validates raw against the named schema and unmarshals it into T.
func Decode[T any](v *Validator, name string, raw []byte) (T, error) {
	var out T
	if _, err := v.Validate(name, raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}

type violation struct {
	errs.FieldError
	rank int
}

// collect flattens the error tree, keeping the highest-priority violation
// per field.
func (v *Validator) collect(name string, root *jsonschema.ValidationError) []errs.FieldError {
	best := map[string]violation{}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		for _, fv := range v.describe(name, e) {
			if cur, ok := best[fv.Field]; !ok || fv.rank < cur.rank {
				best[fv.Field] = fv
			}
		}
	}
	walk(root)

	out := make([]errs.FieldError, 0, len(best))
	for _, fv := range best {
		out = append(out, fv.FieldError)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func (v *Validator) describe(name string, e *jsonschema.ValidationError) []violation {
	field := strings.Join(e.InstanceLocation, ".")
	if field == "" {
		field = bodyField
	}
	override := func(keyword, fallback string) string {
		if m, ok := v.messages[name][field+"."+keyword]; ok {
			return m
		}
		return fallback
	}

	switch k := e.ErrorKind.(type) {
	case *kind.Required:
		out := make([]violation, 0, len(k.Missing))
		for _, m := range k.Missing {
			f := m
			if field != bodyField {
				f = field + "." + m
			}
			out = append(out, violation{errs.FieldError{Field: f, Message: "Required"}, 0})
		}
		return out
	case *kind.Type:
		msg := fmt.Sprintf("Expected %s, received %s", strings.Join(k.Want, " or "), k.Got)
		return []violation{{errs.FieldError{Field: field, Message: override("type", msg)}, 1}}
	case *kind.MinLength:
		msg := fmt.Sprintf("String must contain at least %d character(s)", k.Want)
		return []violation{{errs.FieldError{Field: field, Message: override("minLength", msg)}, 2}}
	case *kind.MaxLength:
		msg := fmt.Sprintf("String must contain at most %d character(s)", k.Want)
		return []violation{{errs.FieldError{Field: field, Message: override("maxLength", msg)}, 2}}
	case *kind.Pattern:
		return []violation{{errs.FieldError{Field: field, Message: override("pattern", "Invalid format")}, 3}}
	default:
		return []violation{{errs.FieldError{Field: field, Message: e.ErrorKind.LocalizedString(printer)}, 4}}
	}
}
