package extract

import (
	"fmt"
	"strings"
)

// extractSerper pulls primitives from a Serper organic search result.
// Web snippets carry no structured coordinates or external id; only the
// title (as name), the link (as website) and the snippet text (as a single
// raw category) survive.
func extractSerper(raw map[string]interface{}) (map[string]interface{}, error) {
	extracted := map[string]interface{}{}

	if title, ok := asString(raw["title"]); ok && strings.TrimSpace(title) != "" {
		extracted["entity_name"] = strings.TrimSpace(title)
	}
	if link, ok := asString(raw["link"]); ok && link != "" {
		extracted["website"] = link
	}
	if snippet, ok := asString(raw["snippet"]); ok && snippet != "" {
		extracted["raw_categories"] = []string{snippet}
	}

	return extracted, nil
}

// extractGooglePlaces pulls primitives from a Google Places result,
// supporting both the legacy (place_id, geometry.location,
// formatted_address) and v1 (id, location, formattedAddress) field names.
func extractGooglePlaces(raw map[string]interface{}) (map[string]interface{}, error) {
	extracted := map[string]interface{}{}

	if displayName, ok := raw["displayName"].(map[string]interface{}); ok {
		if text, ok := asString(displayName["text"]); ok && text != "" {
			extracted["entity_name"] = text
		}
	}
	if _, named := extracted["entity_name"]; !named {
		if name, ok := asString(raw["name"]); ok && name != "" {
			extracted["entity_name"] = name
		}
	}

	if placeID, ok := asString(raw["place_id"]); ok && placeID != "" {
		extracted["external_id"] = placeID
	} else if id, ok := asString(raw["id"]); ok && id != "" {
		extracted["external_id"] = id
	}

	if loc, ok := raw["location"].(map[string]interface{}); ok {
		if v, ok := asFloat(loc["latitude"]); ok {
			extracted["latitude"] = v
		}
		if v, ok := asFloat(loc["longitude"]); ok {
			extracted["longitude"] = v
		}
	} else if geometry, ok := raw["geometry"].(map[string]interface{}); ok {
		if loc, ok := geometry["location"].(map[string]interface{}); ok {
			if v, ok := asFloat(loc["lat"]); ok {
				extracted["latitude"] = v
			}
			if v, ok := asFloat(loc["lng"]); ok {
				extracted["longitude"] = v
			}
		}
	}

	if addr, ok := asString(raw["formattedAddress"]); ok && addr != "" {
		extracted["address"] = addr
	} else if addr, ok := asString(raw["formatted_address"]); ok && addr != "" {
		extracted["address"] = addr
	}

	if phone, ok := asString(raw["internationalPhoneNumber"]); ok && phone != "" {
		extracted["phone"] = phone
	} else if phone, ok := asString(raw["formatted_phone_number"]); ok && phone != "" {
		extracted["phone"] = phone
	}

	if site, ok := asString(raw["websiteUri"]); ok && site != "" {
		extracted["website"] = site
	} else if site, ok := asString(raw["website"]); ok && site != "" {
		extracted["website"] = site
	}

	if types, ok := rawTypes(raw); ok {
		extracted["raw_categories"] = types
	}

	return extracted, nil
}

func rawTypes(raw map[string]interface{}) ([]string, bool) {
	rawValue, ok := raw["types"].([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(rawValue))
	for _, v := range rawValue {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, len(out) > 0
}

// extractOpenStreetMap pulls primitives from an Overpass element: the
// tags bag is free-form, so only well-known tag names are lifted into
// schema fields, and the values of the leisure, amenity, shop and sport
// tags become raw_categories. All other tags are dropped.
func extractOpenStreetMap(raw map[string]interface{}) (map[string]interface{}, error) {
	extracted := map[string]interface{}{}

	elemType, _ := asString(raw["type"])
	if elemType == "" {
		elemType = "node"
	}
	if id, ok := raw["id"]; ok {
		extracted["external_id"] = elemType + "/" + toStringAny(id)
	}

	if v, ok := asFloat(raw["lat"]); ok {
		extracted["latitude"] = v
	}
	if v, ok := asFloat(raw["lon"]); ok {
		extracted["longitude"] = v
	}

	tags, ok := raw["tags"].(map[string]interface{})
	if !ok {
		return extracted, nil
	}

	if name, ok := asString(tags["name"]); ok && name != "" {
		extracted["entity_name"] = name
	}
	if addr, ok := asString(tags["addr:full"]); ok && addr != "" {
		extracted["address"] = addr
	}
	if phone, ok := asString(tags["phone"]); ok && phone != "" {
		extracted["phone"] = phone
	}
	if site, ok := asString(tags["website"]); ok && site != "" {
		extracted["website"] = site
	}

	var categories []string
	for _, key := range []string{"leisure", "amenity", "shop", "sport"} {
		if v, ok := asString(tags[key]); ok && v != "" {
			categories = append(categories, v)
		}
	}
	if len(categories) > 0 {
		extracted["raw_categories"] = categories
	}

	return extracted, nil
}

// extractGovernmentGeoJSON pulls primitives from a WFS GeoJSON Feature.
func extractGovernmentGeoJSON(raw map[string]interface{}) (map[string]interface{}, error) {
	extracted := map[string]interface{}{}

	if id, ok := raw["id"]; ok {
		extracted["external_id"] = toStringAny(id)
	}

	if geometry, ok := raw["geometry"].(map[string]interface{}); ok {
		if gtype, _ := asString(geometry["type"]); gtype == "Point" {
			if coords, ok := geometry["coordinates"].([]interface{}); ok && len(coords) >= 2 {
				if v, ok := asFloat(coords[0]); ok {
					extracted["longitude"] = v
				}
				if v, ok := asFloat(coords[1]); ok {
					extracted["latitude"] = v
				}
			}
		}
	}

	props, ok := raw["properties"].(map[string]interface{})
	if !ok {
		return extracted, nil
	}

	if name, ok := asString(props["name"]); ok && name != "" {
		extracted["entity_name"] = name
	}
	if addr, ok := asString(props["address"]); ok && addr != "" {
		extracted["address"] = addr
	}
	if category, ok := asString(props["category"]); ok && category != "" {
		extracted["raw_categories"] = []string{category}
	} else if facilityType, ok := asString(props["facility_type"]); ok && facilityType != "" {
		extracted["raw_categories"] = []string{facilityType}
	}

	return extracted, nil
}

// extractOvertureRelease pulls primitives from an Overture place row,
// mirroring overture_local_extractor.py's name/coordinate/category/source
// resolution.
func extractOvertureRelease(raw map[string]interface{}) (map[string]interface{}, error) {
	extracted := map[string]interface{}{}

	if name, ok := overtureName(raw); ok {
		extracted["entity_name"] = name
	}

	if geometry, ok := raw["geometry"].(map[string]interface{}); ok {
		if gtype, _ := asString(geometry["type"]); gtype == "Point" {
			if coords, ok := geometry["coordinates"].([]interface{}); ok && len(coords) >= 2 {
				if v, ok := asFloat(coords[0]); ok {
					extracted["longitude"] = v
				}
				if v, ok := asFloat(coords[1]); ok {
					extracted["latitude"] = v
				}
			}
		}
	}

	if categories := overtureCategories(raw); len(categories) > 0 {
		extracted["raw_categories"] = categories
	}

	if id, ok := raw["id"]; ok {
		extracted["external_id"] = toStringAny(id)
	}

	if datasets := overtureSourceDatasets(raw); len(datasets) > 0 {
		extracted["overture_source_datasets"] = datasets
	}

	return extracted, nil
}

func overtureName(raw map[string]interface{}) (string, bool) {
	if name, ok := asString(raw["name"]); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name), true
	}
	names, ok := raw["names"].(map[string]interface{})
	if !ok {
		return "", false
	}
	switch primary := names["primary"].(type) {
	case string:
		if strings.TrimSpace(primary) != "" {
			return strings.TrimSpace(primary), true
		}
	case map[string]interface{}:
		if value, ok := asString(primary["value"]); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func overtureCategories(raw map[string]interface{}) []string {
	var values []string
	if categories, ok := raw["categories"].(map[string]interface{}); ok {
		if primary, ok := asString(categories["primary"]); ok && primary != "" {
			values = append(values, primary)
		}
		switch alternate := categories["alternate"].(type) {
		case string:
			values = append(values, alternate)
		case []interface{}:
			for _, v := range alternate {
				if s, ok := v.(string); ok {
					values = append(values, s)
				}
			}
		}
	}
	return dedupeStrings(values)
}

func overtureSourceDatasets(raw map[string]interface{}) []string {
	sources, ok := raw["sources"].([]interface{})
	if !ok {
		return nil
	}
	var datasets []string
	for _, s := range sources {
		entry, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		if dataset, ok := asString(entry["dataset"]); ok && dataset != "" {
			datasets = append(datasets, dataset)
		}
	}
	return dedupeStrings(datasets)
}

func toStringAny(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
