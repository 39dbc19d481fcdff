package adapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edinburghfinds/lensfeed/internal/model"
)

// Mapper maps one raw result item from a source's response into the
// canonical Candidate schema. It returns an error (a mapping failure) when
// a required field is missing; the caller counts this but does not abort
// the adapter.
type Mapper func(item map[string]interface{}) (model.Candidate, error)

// Mappers is the closed per-source mapper registry. Unknown sources fall
// back to mapGeneric.
var Mappers = map[string]Mapper{
	"serper":             mapSerper,
	"google_places":      mapGooglePlaces,
	"openstreetmap":      mapOpenStreetMap,
	"government_geojson": mapGovernmentGeoJSON,
	"overture_release":   mapOvertureRelease,
}

// MapItem dispatches to the registered mapper for sourceName, falling
// back to the generic mapper for unregistered sources.
func MapItem(sourceName string, item map[string]interface{}) (model.Candidate, error) {
	if m, ok := Mappers[sourceName]; ok {
		return m(item)
	}
	return mapGeneric(sourceName, item)
}

func normalizedRaw(item map[string]interface{}) map[string]interface{} {
	normalized := NormalizeForJSON(item)
	if m, ok := normalized.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func floatPtr(v float64) *float64 { return &v }

// mapSerper maps a Serper organic search result: title is required, there
// are no strong ids and no coordinates.
func mapSerper(item map[string]interface{}) (model.Candidate, error) {
	title, ok := asString(item["title"])
	if !ok || title == "" {
		return model.Candidate{}, fmt.Errorf("serper: missing required 'title' field")
	}
	return model.Candidate{
		Name:   title,
		IDs:    map[string]string{},
		Source: "serper",
		Raw:    normalizedRaw(item),
	}, nil
}

// mapGooglePlaces maps a Google Places result, supporting both the legacy
// API (place_id, name, geometry.location, formatted_address) and the new
// v1 API (id, displayName.text, location.latitude/longitude,
// formattedAddress).
func mapGooglePlaces(item map[string]interface{}) (model.Candidate, error) {
	ids := map[string]string{}
	if placeID, ok := asString(item["place_id"]); ok && placeID != "" {
		ids["google"] = placeID
	} else if id, ok := asString(item["id"]); ok && id != "" {
		ids["google"] = id
	}

	var lat, lng *float64
	if loc, ok := item["location"].(map[string]interface{}); ok {
		if v, ok := asFloat(loc["latitude"]); ok {
			lat = floatPtr(v)
		}
		if v, ok := asFloat(loc["longitude"]); ok {
			lng = floatPtr(v)
		}
	} else if geometry, ok := item["geometry"].(map[string]interface{}); ok {
		if loc, ok := geometry["location"].(map[string]interface{}); ok {
			if v, ok := asFloat(loc["lat"]); ok {
				lat = floatPtr(v)
			}
			if v, ok := asFloat(loc["lng"]); ok {
				lng = floatPtr(v)
			}
		}
	}

	var name string
	if displayName, ok := item["displayName"].(map[string]interface{}); ok {
		if text, ok := asString(displayName["text"]); ok {
			name = text
		}
	} else if n, ok := asString(item["name"]); ok {
		name = n
	}
	if name == "" {
		return model.Candidate{}, fmt.Errorf("google_places: missing required 'name' or 'displayName' field")
	}

	candidate := model.Candidate{
		Name:   name,
		IDs:    ids,
		Lat:    lat,
		Lng:    lng,
		Source: "google_places",
		Raw:    normalizedRaw(item),
	}
	if addr, ok := asString(item["formattedAddress"]); ok && addr != "" {
		candidate.Address = addr
	} else if addr, ok := asString(item["formatted_address"]); ok && addr != "" {
		candidate.Address = addr
	}
	return candidate, nil
}

// mapOpenStreetMap maps an Overpass element: id+type form the strong id,
// lat/lon are flat coordinates, tags.name is the display name (defaulting
// to "Unknown" per the source, since OSM entries frequently lack a name
// tag and the core never rejects a result for that alone).
func mapOpenStreetMap(item map[string]interface{}) (model.Candidate, error) {
	elemType, _ := asString(item["type"])
	if elemType == "" {
		elemType = "node"
	}
	idValue := "unknown"
	if v, ok := item["id"]; ok {
		idValue = fmt.Sprintf("%v", v)
	}
	osmID := fmt.Sprintf("%s/%s", elemType, idValue)

	name := "Unknown"
	if tags, ok := item["tags"].(map[string]interface{}); ok {
		if n, ok := asString(tags["name"]); ok && n != "" {
			name = n
		}
	}

	var lat, lng *float64
	if v, ok := asFloat(item["lat"]); ok {
		lat = floatPtr(v)
	}
	if v, ok := asFloat(item["lon"]); ok {
		lng = floatPtr(v)
	}

	return model.Candidate{
		Name:   name,
		IDs:    map[string]string{"osm": osmID},
		Lat:    lat,
		Lng:    lng,
		Source: "openstreetmap",
		Raw:    normalizedRaw(item),
	}, nil
}

// mapGovernmentGeoJSON maps a GeoJSON Feature from a government WFS feed
// (generalized from the original Sport Scotland connector): id is the
// strong id, properties.name is the display name, geometry.coordinates is
// [lng, lat] per the GeoJSON spec.
func mapGovernmentGeoJSON(item map[string]interface{}) (model.Candidate, error) {
	featureID := "unknown"
	if v, ok := item["id"]; ok {
		featureID = fmt.Sprintf("%v", v)
	}

	name := "Unknown"
	if props, ok := item["properties"].(map[string]interface{}); ok {
		if n, ok := asString(props["name"]); ok && n != "" {
			name = n
		}
	}

	var lat, lng *float64
	if geometry, ok := item["geometry"].(map[string]interface{}); ok {
		if gtype, _ := asString(geometry["type"]); gtype == "Point" {
			if coords, ok := geometry["coordinates"].([]interface{}); ok && len(coords) >= 2 {
				if v, ok := asFloat(coords[0]); ok {
					lng = floatPtr(v)
				}
				if v, ok := asFloat(coords[1]); ok {
					lat = floatPtr(v)
				}
			}
		}
	}

	return model.Candidate{
		Name:   name,
		IDs:    map[string]string{"government_geojson": featureID},
		Lat:    lat,
		Lng:    lng,
		Source: "government_geojson",
		Raw:    normalizedRaw(item),
	}, nil
}

// mapOvertureRelease maps an Overture Maps bulk release row: id is the
// stable place id, name falls back to names.primary (string or
// {value:...} object form), geometry.coordinates is GeoJSON [lng, lat].
func mapOvertureRelease(item map[string]interface{}) (model.Candidate, error) {
	ids := map[string]string{}
	if id, ok := item["id"]; ok && id != nil {
		ids["overture"] = fmt.Sprintf("%v", id)
	}

	name, _ := asString(item["name"])
	name = strings.TrimSpace(name)
	if name == "" {
		if names, ok := item["names"].(map[string]interface{}); ok {
			switch primary := names["primary"].(type) {
			case string:
				name = strings.TrimSpace(primary)
			case map[string]interface{}:
				if v, ok := asString(primary["value"]); ok {
					name = strings.TrimSpace(v)
				}
			}
		}
	}
	if name == "" {
		return model.Candidate{}, fmt.Errorf("overture_release: missing required names.primary field")
	}

	var lat, lng *float64
	if geometry, ok := item["geometry"].(map[string]interface{}); ok {
		if gtype, _ := asString(geometry["type"]); gtype == "Point" {
			if coords, ok := geometry["coordinates"].([]interface{}); ok && len(coords) >= 2 {
				if v, ok := asFloat(coords[0]); ok {
					lng = floatPtr(v)
				}
				if v, ok := asFloat(coords[1]); ok {
					lat = floatPtr(v)
				}
			}
		}
	}

	return model.Candidate{
		Name:   name,
		IDs:    ids,
		Lat:    lat,
		Lng:    lng,
		Source: "overture_release",
		Raw:    normalizedRaw(item),
	}, nil
}

// mapGeneric is the fallback mapper for any source not in the closed
// registry: assumes a "name" field, no strong ids, no coordinates.
func mapGeneric(sourceName string, item map[string]interface{}) (model.Candidate, error) {
	name, ok := asString(item["name"])
	if !ok || name == "" {
		name = "Unknown"
	}
	return model.Candidate{
		Name:   name,
		IDs:    map[string]string{},
		Source: sourceName,
		Raw:    normalizedRaw(item),
	}, nil
}
