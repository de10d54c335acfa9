package tools

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ParamSpec declares one tool parameter. Parameters without a default are
// required.
type ParamSpec struct {
	Name        string
	Type        string // string, integer, number, boolean, object, array
	Description string
	Default     interface{}
}

var validParamTypes = map[string]bool{
	"string": true, "integer": true, "number": true,
	"boolean": true, "object": true, "array": true,
}

// buildSchemaDoc derives the JSON-schema object from the parameter specs:
// {type:"object", properties:{...}, required:[...]}.
func buildSchemaDoc(params []ParamSpec) (map[string]interface{}, error) {
	properties := map[string]interface{}{}
	required := []string{}

	for _, p := range params {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		if !validParamTypes[typ] {
			return nil, fmt.Errorf("parameter %q has invalid type %q", p.Name, typ)
		}
		prop := map[string]interface{}{"type": typ}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Default == nil {
			required = append(required, p.Name)
		}
	}

	doc := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc, nil
}

// compileSchema compiles the schema document for argument validation.
func compileSchema(doc map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// normalizeArgs roundtrips arguments through JSON so validation sees the
// same value shapes a decoded request body would carry.
func normalizeArgs(args map[string]interface{}) (any, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal arguments: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("unmarshal arguments: %w", err)
	}
	return normalized, nil
}
