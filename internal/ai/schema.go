package ai

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	boundarySchemaName = "schemas/boundaries.json"
	questionSchemaName = "schemas/questions.json"
)

// ErrInvalidResponse marks a model reply that is not JSON or does not match
// the expected shape.
var ErrInvalidResponse = errors.New("invalid llm response")

var (
	compileOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	compileErr  error
)

func compiledSchema(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		out := make(map[string]*jsonschema.Schema, 2)
		for _, n := range []string{boundarySchemaName, questionSchemaName} {
			raw, err := schemaFS.ReadFile(n)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", n, err)
				return
			}
			if err := compiler.AddResource(n, strings.NewReader(string(raw))); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", n, err)
				return
			}
		}
		for _, n := range []string{boundarySchemaName, questionSchemaName} {
			s, err := compiler.Compile(n)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", n, err)
				return
			}
			out[n] = s
		}
		schemas = out
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return schemas[name], nil
}

// decodeValidated strips any code fence around reply, validates it against
// the named schema and decodes it into dst.
func decodeValidated(name, reply string, dst interface{}) error {
	schema, err := compiledSchema(name)
	if err != nil {
		return err
	}
	payload := extractJSON(reply)
	var doc interface{}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return fmt.Errorf("%w: not json: %v", ErrInvalidResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}
	return nil
}

// extractJSON returns the outermost JSON object of s, tolerating markdown
// fences and chatter around it.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}
