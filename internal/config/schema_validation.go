package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	intthreadschema "github.com/Paintersrp/intthread/schema"
)

const schemaResource = "threads.v1.json"

var loadThreadsSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaResource, bytes.NewReader(intthreadschema.ThreadsV1Schema)); err != nil {
		return nil, fmt.Errorf("add threads schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile threads schema: %w", err)
	}
	return schema, nil
})

// validateAgainstSchema checks the raw document before it is decoded into
// typed structs, so structural mistakes are reported by path.
func validateAgainstSchema(doc map[string]any) error {
	schema, err := loadThreadsSchema()
	if err != nil {
		return err
	}

	instance, err := toJSONValue(doc)
	if err != nil {
		return fmt.Errorf("prepare manifest for schema validation: %w", err)
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil
	}
	var vErr *jsonschema.ValidationError
	if !errors.As(err, &vErr) {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return fmt.Errorf("schema validation failed:\n%s", strings.Join(schemaProblems(vErr), "\n"))
}

// toJSONValue converts a YAML tree into the value model the validator
// expects: string keys and json.Number for every number.
func toJSONValue(doc map[string]any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// schemaProblems flattens a validation error into one sorted line per leaf
// failure.
func schemaProblems(err *jsonschema.ValidationError) []string {
	seen := make(map[string]struct{})
	var lines []string
	for _, unit := range err.BasicOutput().Errors {
		if unit.Error == "" || strings.HasPrefix(unit.Error, "doesn't validate with") {
			continue
		}
		line := fmt.Sprintf("- %s: %s", manifestPath(unit.InstanceLocation), unit.Error)
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, fmt.Sprintf("- %s: %s", manifestPath(err.InstanceLocation), err.Message))
	}
	sort.Strings(lines)
	return lines
}

// manifestPath renders a JSON pointer the way validation errors name
// fields, e.g. /threads/0/id becomes threads[0].id.
func manifestPath(ptr string) string {
	var b strings.Builder
	for _, segment := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if segment == "" {
			continue
		}
		segment = strings.NewReplacer("~1", "/", "~0", "~").Replace(segment)
		if _, err := strconv.Atoi(segment); err == nil {
			fmt.Fprintf(&b, "[%s]", segment)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(segment)
	}
	if b.Len() == 0 {
		return "manifest"
	}
	return b.String()
}
