// Package lens loads and validates lens contracts: external YAML
// configuration artifacts that tell the engine how to interpret raw
// observations for a given vertical without any engine code change.
package lens

// Facet is a lens-level UI/semantic grouping bound to exactly one
// canonical dimension.
type Facet struct {
	DimensionSource string                 `yaml:"dimension_source"`
	UILabel         string                 `yaml:"ui_label"`
	DisplayMode     string                 `yaml:"display_mode,omitempty"`
	Order           int                    `yaml:"order,omitempty"`
	Flags           map[string]interface{} `yaml:"flags,omitempty"`
}

// Value is one canonical value belonging to a facet.
type Value struct {
	Key         string `yaml:"key" validate:"required"`
	Facet       string `yaml:"facet" validate:"required"`
	DisplayName string `yaml:"display_name,omitempty"`
}

// MappingRule maps a regex match against a candidate's source fields to a
// canonical value.
type MappingRule struct {
	Pattern      string   `yaml:"pattern" validate:"required"`
	Canonical    string   `yaml:"canonical" validate:"required"`
	Confidence   float64  `yaml:"confidence,omitempty"`
	SourceFields []string `yaml:"source_fields,omitempty"`
}

// FieldRuleApplicability restricts a field rule to specific sources and/or
// entity classes.
type FieldRuleApplicability struct {
	Source      []string `yaml:"source,omitempty"`
	EntityClass []string `yaml:"entity_class,omitempty"`
}

// FieldRule extracts one value from an entity's source fields, normalizes
// it, and assigns it into a module's nested structure.
type FieldRule struct {
	TargetPath      string                 `yaml:"target_path" validate:"required"`
	Extractor       string                 `yaml:"extractor" validate:"required"`
	Pattern         string                 `yaml:"pattern,omitempty"`
	SourceFields    []string               `yaml:"source_fields,omitempty"`
	Normalizers     []string               `yaml:"normalizers,omitempty"`
	Applicability   FieldRuleApplicability `yaml:"applicability,omitempty"`
}

// Module is a nested structured sub-object definition populated by field
// rules when a trigger fires.
type Module struct {
	Description string      `yaml:"description,omitempty"`
	Fields      []string    `yaml:"fields,omitempty"`
	FieldRules  []FieldRule `yaml:"field_rules,omitempty"`
}

// TriggerWhen names the facet/value pair that must be present among the
// collected canonical values for a ModuleTrigger to fire.
type TriggerWhen struct {
	Facet string `yaml:"facet" validate:"required"`
	Value string `yaml:"value" validate:"required"`
}

// TriggerCondition further restricts when a ModuleTrigger fires.
type TriggerCondition struct {
	EntityClass string `yaml:"entity_class,omitempty"`
}

// ModuleTrigger fires one or more modules into existence when its `when`
// condition is satisfied by the entity's canonical dimensions.
type ModuleTrigger struct {
	When       TriggerWhen        `yaml:"when"`
	AddModules []string           `yaml:"add_modules" validate:"required"`
	Conditions []TriggerCondition `yaml:"conditions,omitempty"`
}

// DerivedGroupingRule is one alternative that satisfies a DerivedGrouping.
type DerivedGroupingRule struct {
	EntityClass string   `yaml:"entity_class"`
	Roles       []string `yaml:"roles,omitempty"`
}

// DerivedGrouping is a named, lens-authored view computed from entity_class
// plus roles (not persisted separately, used for report/UI grouping).
type DerivedGrouping struct {
	ID    string                `yaml:"id" validate:"required"`
	Label string                `yaml:"label,omitempty"`
	Rules []DerivedGroupingRule `yaml:"rules"`
}

// ConnectorRule lets a lens add a domain-specific adapter when a trigger
// condition matches, without the planner hardcoding the vertical.
type ConnectorRule struct {
	Connector string      `yaml:"connector" validate:"required"`
	When      TriggerWhen `yaml:"when,omitempty"`
}

// Contract is the frozen, validated lens configuration. Once Load returns
// one successfully it never changes for the lifetime of the process.
type Contract struct {
	Schema             string                     `yaml:"schema" validate:"required"`
	Facets             map[string]Facet           `yaml:"facets" validate:"required"`
	Values             []Value                    `yaml:"values" validate:"required"`
	MappingRules       []MappingRule              `yaml:"mapping_rules" validate:"required"`
	Modules            map[string]Module          `yaml:"modules,omitempty"`
	ModuleTriggers     []ModuleTrigger            `yaml:"module_triggers,omitempty"`
	DerivedGroupings   []DerivedGrouping          `yaml:"derived_groupings,omitempty"`
	ConnectorRules     []ConnectorRule            `yaml:"connector_rules,omitempty"`
	ConfidenceThreshold float64                   `yaml:"confidence_threshold,omitempty"`
	CategoryKeywords   []string                   `yaml:"category_keywords,omitempty"`
	SpecificIndicators []string                   `yaml:"specific_indicators,omitempty"`
	LocationNames      []string                   `yaml:"location_names,omitempty"`
}

// canonicalDimensions are the only four valid facet dimension_source
// values; every Entity.canonical_* array corresponds to exactly one.
var canonicalDimensions = map[string]struct{}{
	"canonical_activities":  {},
	"canonical_roles":       {},
	"canonical_place_types": {},
	"canonical_access":      {},
}

// entityClasses are the only five valid entity_class values.
var entityClasses = map[string]struct{}{
	"place": {}, "person": {}, "organization": {}, "event": {}, "thing": {},
}
