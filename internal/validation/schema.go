package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchemaJSON string

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// configSchema is the compiled JSON Schema for .veracity.yaml files.
var configSchema = mustCompileSchema(configSchemaJSON, "config.schema.json")

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateConfigFile validates a .veracity.yaml file at the given path.
func ValidateConfigFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return ValidateConfigBytes(data), nil
}

// ValidateConfigBytes validates raw YAML bytes against the config schema,
// then checks the ensemble rules a schema can't express: detector names
// are unique and weights add up to 1.
func ValidateConfigBytes(data []byte) []string {
	errs := validateYAMLBytes(configSchema, data)
	if len(errs) > 0 {
		return errs
	}

	var cfg struct {
		Detectors []struct {
			Name   string  `yaml:"name"`
			Weight float64 `yaml:"weight"`
		} `yaml:"detectors"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	if len(cfg.Detectors) == 0 {
		return nil
	}

	seen := map[string]bool{}
	var total float64

	for i, d := range cfg.Detectors {
		if seen[d.Name] {
			errs = append(errs, defaultPrinter.Sprintf("/detectors/%d/name: duplicate detector name %q", i, d.Name))
		}
		seen[d.Name] = true
		total += d.Weight
	}

	if math.Abs(total-1) > 1e-6 {
		errs = append(errs, defaultPrinter.Sprintf("/detectors: weights sum to %v, must sum to 1", total))
	}

	return errs
}

func validateYAMLBytes(schema *jsonschema.Schema, data []byte) []string {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	// an empty file is an empty config
	if yamlDoc == nil {
		yamlDoc = map[string]any{}
	}

	return validateAgainstSchema(schema, convertToJSONCompatible(yamlDoc))
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible normalizes YAML-decoded values for the validator:
// ints become float64 the way encoding/json would decode them.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	case int:
		return float64(val)
	default:
		return val
	}
}
