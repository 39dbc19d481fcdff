package lensapply

import (
	"sort"
	"strings"

	"github.com/edinburghfinds/lensfeed/internal/classifier"
	"github.com/edinburghfinds/lensfeed/internal/lens"
)

// EvaluateModuleTriggers returns the deduplicated, sorted list of module
// names to attach, given the entity's class and its canonical values
// grouped by facet. A trigger fires when its when.value is present among
// the entity's values for when.facet and every one of its conditions
// matches (currently the only supported condition is entity_class).
func EvaluateModuleTriggers(contract *lens.Contract, entityClass string, canonicalValuesByFacet map[string][]string) []string {
	seen := map[string]struct{}{}

	for _, trigger := range contract.ModuleTriggers {
		if trigger.When.Facet == "" || trigger.When.Value == "" {
			continue
		}
		facetValues := canonicalValuesByFacet[trigger.When.Facet]
		if !containsString(facetValues, trigger.When.Value) {
			continue
		}

		conditionsMet := true
		for _, cond := range trigger.Conditions {
			if cond.EntityClass != "" && cond.EntityClass != entityClass {
				conditionsMet = false
				break
			}
		}
		if !conditionsMet {
			continue
		}

		for _, moduleName := range trigger.AddModules {
			seen[moduleName] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// BuildModules evaluates module triggers, unions in the engine-required
// modules for entityClass, and executes field rules for every named
// module, omitting any module for which no field rule produced a value.
func BuildModules(contract *lens.Contract, entityClass string, canonicalValuesByFacet map[string][]string, entity map[string]interface{}, source string) map[string]interface{} {
	modules := map[string]interface{}{}

	names := EvaluateModuleTriggers(contract, entityClass, canonicalValuesByFacet)
	seen := map[string]struct{}{}
	for _, name := range names {
		seen[name] = struct{}{}
	}
	for _, name := range classifier.RequiredModules(entityClass) {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
			seen[name] = struct{}{}
		}
	}
	sort.Strings(names)

	for _, name := range names {
		module, ok := contract.Modules[name]
		if !ok {
			continue
		}
		result := ExecuteFieldRules(module.FieldRules, entity, source, entityClass)
		if len(result) == 0 {
			continue
		}
		modules[name] = result
	}

	return modules
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// ExecuteFieldRules runs a module's field rules against entity,
// filtering by source/entity_class applicability, dispatching to the
// regex_capture or numeric_parser extractor, running the normalizer
// pipeline, and writing the result into a nested structure keyed by the
// rule's dot-separated target_path.
func ExecuteFieldRules(rules []lens.FieldRule, entity map[string]interface{}, source, entityClass string) map[string]interface{} {
	result := map[string]interface{}{}

	for _, rule := range rules {
		if len(rule.Applicability.Source) > 0 && !containsString(rule.Applicability.Source, source) {
			continue
		}
		if len(rule.Applicability.EntityClass) > 0 && !containsString(rule.Applicability.EntityClass, entityClass) {
			continue
		}

		var extracted interface{}
		var ok bool

		switch rule.Extractor {
		case "regex_capture":
			for _, field := range rule.SourceFields {
				raw, exists := entity[field]
				if !exists || raw == nil {
					continue
				}
				if v, matched := extractRegexCapture(toText(raw), rule.Pattern); matched {
					extracted, ok = v, true
					break
				}
			}
		case "numeric_parser":
			for _, field := range rule.SourceFields {
				raw, exists := entity[field]
				if !exists || raw == nil {
					continue
				}
				if v, matched := extractNumeric(toText(raw)); matched {
					extracted, ok = v, true
					break
				}
			}
		}

		if !ok {
			continue
		}

		if len(rule.Normalizers) > 0 {
			extracted = applyNormalizers(extracted, rule.Normalizers)
		}

		setNestedValue(result, rule.TargetPath, extracted)
	}

	return result
}

func toText(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSpace(toStringFallback(v))
}

func toStringFallback(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return ""
	}
}

// setNestedValue writes value at a dot-separated path inside data,
// creating intermediate maps as needed.
func setNestedValue(data map[string]interface{}, path string, value interface{}) {
	keys := strings.Split(path, ".")
	current := data
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			current[key] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = value
}
