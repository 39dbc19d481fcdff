package lens

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/edinburghfinds/lensfeed/internal/engine"
)

// ValidationError names the specific gate that failed, so a fatal
// configuration error at bootstrap always points at the offending contract
// section.
type ValidationError struct {
	Gate   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lens validation failed (%s): %s", e.Gate, e.Detail)
}

func gateErr(gate, format string, args ...interface{}) error {
	return engine.Wrap(engine.ErrKindConfig, &ValidationError{Gate: gate, Detail: fmt.Sprintf(format, args...)})
}

// Validate runs every gate against the contract in the fixed order the
// spec defines, failing on the first violation (no partial validation: a
// bad contract never becomes partially usable). knownConnectors is the set
// of adapter names registered with the process, used by the connector-refs
// gate.
func Validate(c *Contract, knownConnectors map[string]struct{}) error {
	if err := gateSchema(c); err != nil {
		return err
	}
	if err := gateDimensionIntegrity(c); err != nil {
		return err
	}
	if err := gateValueFacetIntegrity(c); err != nil {
		return err
	}
	if err := gateRuleValueIntegrity(c); err != nil {
		return err
	}
	if err := gateUniqueValueKeys(c); err != nil {
		return err
	}
	if err := gateConnectorRefs(c, knownConnectors); err != nil {
		return err
	}
	if err := gateRegexCompilation(c); err != nil {
		return err
	}
	if err := gateCoverage(c); err != nil {
		return err
	}
	if err := gateModuleTriggerRefs(c); err != nil {
		return err
	}
	if err := gateDerivedGroupingRefs(c); err != nil {
		return err
	}
	return nil
}

// gateSchema: required top-level sections schema, facets, values,
// mapping_rules are present.
func gateSchema(c *Contract) error {
	if c.Schema == "" {
		return gateErr("schema", "top-level 'schema' field is required")
	}
	if c.Facets == nil {
		return gateErr("schema", "top-level 'facets' section is required")
	}
	if c.Values == nil {
		return gateErr("schema", "top-level 'values' section is required")
	}
	if c.MappingRules == nil {
		return gateErr("schema", "top-level 'mapping_rules' section is required")
	}
	return nil
}

// gateDimensionIntegrity: every facets[k].dimension_source is one of the
// four canonical dimensions.
func gateDimensionIntegrity(c *Contract) error {
	keys := sortedFacetKeys(c)
	for _, k := range keys {
		f := c.Facets[k]
		if _, ok := canonicalDimensions[f.DimensionSource]; !ok {
			return gateErr("dimension_integrity", "facet %q has invalid dimension_source %q", k, f.DimensionSource)
		}
	}
	return nil
}

// gateValueFacetIntegrity: every values[i].facet references a defined
// facet.
func gateValueFacetIntegrity(c *Contract) error {
	for _, v := range c.Values {
		if _, ok := c.Facets[v.Facet]; !ok {
			return gateErr("value_facet_integrity", "value %q references undefined facet %q", v.Key, v.Facet)
		}
	}
	return nil
}

// gateRuleValueIntegrity: every mapping_rules[i].canonical references a
// defined value key.
func gateRuleValueIntegrity(c *Contract) error {
	valueKeys := map[string]struct{}{}
	for _, v := range c.Values {
		valueKeys[v.Key] = struct{}{}
	}
	for _, r := range c.MappingRules {
		if _, ok := valueKeys[r.Canonical]; !ok {
			return gateErr("rule_value_integrity", "mapping rule %q references undefined value %q", r.Pattern, r.Canonical)
		}
	}
	return nil
}

// gateUniqueValueKeys: no duplicate values[i].key.
func gateUniqueValueKeys(c *Contract) error {
	seen := map[string]struct{}{}
	for _, v := range c.Values {
		if _, ok := seen[v.Key]; ok {
			return gateErr("unique_value_keys", "duplicate value key %q", v.Key)
		}
		seen[v.Key] = struct{}{}
	}
	return nil
}

// gateConnectorRefs: every connector_rules[k] names a registered adapter.
func gateConnectorRefs(c *Contract, knownConnectors map[string]struct{}) error {
	for _, cr := range c.ConnectorRules {
		if _, ok := knownConnectors[cr.Connector]; !ok {
			return gateErr("connector_refs", "connector_rules references unregistered adapter %q", cr.Connector)
		}
	}
	return nil
}

// gateRegexCompilation: every mapping_rules[i].pattern compiles.
func gateRegexCompilation(c *Contract) error {
	for _, r := range c.MappingRules {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return gateErr("regex_compilation", "mapping rule pattern %q does not compile: %v", r.Pattern, err)
		}
	}
	for moduleName, m := range c.Modules {
		for _, fr := range m.FieldRules {
			if fr.Pattern == "" {
				continue
			}
			if _, err := regexp.Compile(fr.Pattern); err != nil {
				return gateErr("regex_compilation", "module %q field rule pattern %q does not compile: %v", moduleName, fr.Pattern, err)
			}
		}
	}
	return nil
}

// gateCoverage: every facet has at least one value.
func gateCoverage(c *Contract) error {
	covered := map[string]struct{}{}
	for _, v := range c.Values {
		covered[v.Facet] = struct{}{}
	}
	for _, k := range sortedFacetKeys(c) {
		if _, ok := covered[k]; !ok {
			return gateErr("coverage", "facet %q has no values", k)
		}
	}
	return nil
}

// gateModuleTriggerRefs: when.facet in facets; every entry in add_modules
// in modules.
func gateModuleTriggerRefs(c *Contract) error {
	for _, t := range c.ModuleTriggers {
		if _, ok := c.Facets[t.When.Facet]; !ok {
			return gateErr("module_trigger_refs", "module_trigger when.facet %q is not defined", t.When.Facet)
		}
		for _, m := range t.AddModules {
			if _, ok := c.Modules[m]; !ok {
				return gateErr("module_trigger_refs", "module_trigger add_modules references undefined module %q", m)
			}
		}
	}
	return nil
}

// gateDerivedGroupingRefs: every entity_class in rules is one of the five
// valid classes.
func gateDerivedGroupingRefs(c *Contract) error {
	for _, g := range c.DerivedGroupings {
		for _, r := range g.Rules {
			if r.EntityClass == "" {
				continue
			}
			if _, ok := entityClasses[r.EntityClass]; !ok {
				return gateErr("derived_grouping_refs", "derived_grouping %q references invalid entity_class %q", g.ID, r.EntityClass)
			}
		}
	}
	return nil
}

func sortedFacetKeys(c *Contract) []string {
	keys := make([]string, 0, len(c.Facets))
	for k := range c.Facets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
