package adapter

import "github.com/edinburghfinds/lensfeed/internal/queryfeatures"

// QueryTranslator turns a natural-language query into the input form a
// specific adapter expects. Most adapters accept the query as-is; a few
// (e.g. a government WFS endpoint that only understands fixed layer
// names) need translation. Modelled as a closed registry instead of an
// if/elif chain so adding a translated adapter never touches the uniform
// extraction layer.
type QueryTranslator func(query string, features queryfeatures.Features) string

// identityTranslator returns the query unchanged - the default for every
// adapter not listed in Translators.
func identityTranslator(query string, _ queryfeatures.Features) string {
	return query
}

// Translators is the closed map of adapter name to its query translation
// function. government_geojson (the generalized Sport Scotland WFS
// adapter) is the only adapter in the roster that needs a fixed,
// non-identity translation: its WFS layer is unified across all facility
// types, so every query resolves to the same layer name.
var Translators = map[string]QueryTranslator{
	"government_geojson": translateToGovernmentGeoJSONLayer,
}

// translateToGovernmentGeoJSONLayer always returns the unified facilities
// layer name; filtering by activity happens through WFS filter parameters
// or post-processing, not through the query string.
func translateToGovernmentGeoJSONLayer(_ string, _ queryfeatures.Features) string {
	return "pub_sptk"
}

// Translate looks up the adapter's translator (falling back to identity)
// and applies it.
func Translate(sourceName, query string, features queryfeatures.Features) string {
	if t, ok := Translators[sourceName]; ok {
		return t(query, features)
	}
	return identityTranslator(query, features)
}
