// Package validation checks spec and claim YAML files against their JSON
// Schemas before a run starts, so configuration mistakes surface with field
// paths instead of mid-run failures.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwhelan/claimcheck/schemas"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// specSchema is the compiled JSON Schema for spec YAML files.
var specSchema *jsonschema.Schema

// claimSchema is the compiled JSON Schema for claim YAML files.
var claimSchema *jsonschema.Schema

func init() {
	specSchema = mustCompileSchema(schemas.SpecSchemaJSON, "spec.schema.json")
	claimSchema = mustCompileSchema(schemas.ClaimSchemaJSON, "claim.schema.json")
}

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

// ValidateSpecFile validates a spec YAML file at the given path against the
// JSON Schema. Returns errors for the spec itself AND all referenced claim
// files. Markdown claims carry frontmatter rather than pure YAML and are
// skipped here; LoadClaim validates them at load time.
func ValidateSpecFile(specPath string) (specErrs []string, claimErrs map[string][]string, err error) {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading spec file: %w", err)
	}

	specErrs = ValidateSpecBytes(data)

	// Parse into a minimal struct to resolve claim globs
	var spec struct {
		Claims []string `yaml:"claims"`
	}
	if yamlErr := yaml.Unmarshal(data, &spec); yamlErr != nil {
		return specErrs, nil, nil // can't resolve claims, but spec errors are still useful
	}

	baseDir := filepath.Dir(specPath)
	claimErrs = make(map[string][]string)

	for _, pattern := range spec.Claims {
		fullPattern := filepath.Join(baseDir, pattern)
		matches, globErr := filepath.Glob(fullPattern)
		if globErr != nil {
			continue
		}
		for _, claimFile := range matches {
			switch strings.ToLower(filepath.Ext(claimFile)) {
			case ".md", ".markdown":
				continue
			}
			claimData, readErr := os.ReadFile(claimFile)
			if readErr != nil {
				continue
			}
			errs := ValidateClaimBytes(claimData)
			if len(errs) > 0 {
				relPath, relErr := filepath.Rel(baseDir, claimFile)
				if relErr != nil {
					relPath = claimFile
				}
				claimErrs[relPath] = errs
			}
		}
	}

	return specErrs, claimErrs, nil
}

// ValidateSpecBytes validates raw YAML bytes against the spec schema.
func ValidateSpecBytes(data []byte) []string {
	return validateYAMLBytes(specSchema, data)
}

// ValidateClaimBytes validates raw YAML bytes against the claim schema.
func ValidateClaimBytes(data []byte) []string {
	return validateYAMLBytes(claimSchema, data)
}

func validateYAMLBytes(schema *jsonschema.Schema, data []byte) []string {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	jsonCompatible := convertToJSONCompatible(yamlDoc)

	return validateAgainstSchema(schema, jsonCompatible)
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

// convertToJSONCompatible converts YAML-decoded values to JSON-compatible types.
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
	default:
		return val
	}
}
