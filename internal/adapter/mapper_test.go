package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edinburghfinds/lensfeed/internal/queryfeatures"
)

func TestMapSerper_RequiresTitle(t *testing.T) {
	_, err := mapSerper(map[string]interface{}{})
	assert.Error(t, err)

	candidate, err := mapSerper(map[string]interface{}{"title": "Oriam Sports Centre"})
	require.NoError(t, err)
	assert.Equal(t, "Oriam Sports Centre", candidate.Name)
	assert.Equal(t, "serper", candidate.Source)
	assert.Empty(t, candidate.IDs)
}

func TestMapGooglePlaces_LegacyShape(t *testing.T) {
	item := map[string]interface{}{
		"place_id": "abc123",
		"name":     "Oriam",
		"geometry": map[string]interface{}{
			"location": map[string]interface{}{"lat": 55.9, "lng": -3.3},
		},
		"formatted_address": "Heriot-Watt University",
	}
	candidate, err := mapGooglePlaces(item)
	require.NoError(t, err)
	assert.Equal(t, "Oriam", candidate.Name)
	assert.Equal(t, "abc123", candidate.IDs["google"])
	require.NotNil(t, candidate.Lat)
	require.NotNil(t, candidate.Lng)
	assert.Equal(t, 55.9, *candidate.Lat)
	assert.Equal(t, -3.3, *candidate.Lng)
	assert.Equal(t, "Heriot-Watt University", candidate.Address)
}

func TestMapGooglePlaces_V1Shape(t *testing.T) {
	item := map[string]interface{}{
		"id":          "xyz789",
		"displayName": map[string]interface{}{"text": "Meadows Tennis Courts"},
		"location":    map[string]interface{}{"latitude": 55.94, "longitude": -3.19},
		"formattedAddress": "The Meadows, Edinburgh",
	}
	candidate, err := mapGooglePlaces(item)
	require.NoError(t, err)
	assert.Equal(t, "Meadows Tennis Courts", candidate.Name)
	assert.Equal(t, "xyz789", candidate.IDs["google"])
	assert.Equal(t, "The Meadows, Edinburgh", candidate.Address)
}

func TestMapGooglePlaces_RequiresName(t *testing.T) {
	_, err := mapGooglePlaces(map[string]interface{}{"place_id": "abc"})
	assert.Error(t, err)
}

func TestMapOpenStreetMap_DefaultsNameAndID(t *testing.T) {
	candidate, err := mapOpenStreetMap(map[string]interface{}{
		"type": "way",
		"id":   float64(42),
		"lat":  55.9,
		"lon":  -3.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", candidate.Name)
	assert.Equal(t, "way/42", candidate.IDs["osm"])
	require.NotNil(t, candidate.Lat)
	assert.Equal(t, 55.9, *candidate.Lat)
}

func TestMapOpenStreetMap_UsesTagName(t *testing.T) {
	candidate, err := mapOpenStreetMap(map[string]interface{}{
		"type": "node",
		"id":   float64(1),
		"tags": map[string]interface{}{"name": "Meggetland Sports Complex"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Meggetland Sports Complex", candidate.Name)
}

func TestMapGovernmentGeoJSON_PointGeometry(t *testing.T) {
	item := map[string]interface{}{
		"id": "feature-1",
		"properties": map[string]interface{}{
			"name": "Portobello Swim Centre",
		},
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []interface{}{-3.11, 55.95},
		},
	}
	candidate, err := mapGovernmentGeoJSON(item)
	require.NoError(t, err)
	assert.Equal(t, "Portobello Swim Centre", candidate.Name)
	assert.Equal(t, "feature-1", candidate.IDs["government_geojson"])
	require.NotNil(t, candidate.Lat)
	require.NotNil(t, candidate.Lng)
	assert.Equal(t, 55.95, *candidate.Lat)
	assert.Equal(t, -3.11, *candidate.Lng)
}

func TestMapOvertureRelease_PrimaryNameObjectForm(t *testing.T) {
	item := map[string]interface{}{
		"id":    "overture-1",
		"names": map[string]interface{}{"primary": map[string]interface{}{"value": "Craiglockhart Tennis"}},
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []interface{}{-3.25, 55.92},
		},
	}
	candidate, err := mapOvertureRelease(item)
	require.NoError(t, err)
	assert.Equal(t, "Craiglockhart Tennis", candidate.Name)
	assert.Equal(t, "overture-1", candidate.IDs["overture"])
}

func TestMapOvertureRelease_RequiresName(t *testing.T) {
	_, err := mapOvertureRelease(map[string]interface{}{"id": "x"})
	assert.Error(t, err)
}

func TestMapItem_FallsBackToGeneric(t *testing.T) {
	candidate, err := MapItem("not_a_real_source", map[string]interface{}{"name": "Mystery Club"})
	require.NoError(t, err)
	assert.Equal(t, "Mystery Club", candidate.Name)
	assert.Equal(t, "not_a_real_source", candidate.Source)
}

func TestMapGeneric_DefaultsNameWhenMissing(t *testing.T) {
	candidate, err := mapGeneric("unknown", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", candidate.Name)
}

func TestExtractItems_TriesEnvelopeKeysInOrder(t *testing.T) {
	items := ExtractItems(map[string]interface{}{
		"places": []interface{}{
			map[string]interface{}{"name": "A"},
			map[string]interface{}{"name": "B"},
		},
	})
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0]["name"])
}

func TestExtractItems_NoKnownEnvelopeReturnsNil(t *testing.T) {
	items := ExtractItems(map[string]interface{}{"unexpected": "shape"})
	assert.Nil(t, items)
}

func TestTranslate_GovernmentGeoJSONAlwaysUsesFixedLayer(t *testing.T) {
	got := Translate("government_geojson", "swimming pools near Edinburgh", queryfeatures.Features{})
	assert.Equal(t, "pub_sptk", got)
}

func TestTranslate_UnknownSourceIsIdentity(t *testing.T) {
	got := Translate("serper", "padel courts", queryfeatures.Features{})
	assert.Equal(t, "padel courts", got)
}

func TestNormalizeForJSON_RecursesThroughMapsAndSlices(t *testing.T) {
	input := map[string]interface{}{
		"nested": map[string]interface{}{"list": []interface{}{1, "two", 3.0}},
	}
	out, ok := NormalizeForJSON(input).(map[string]interface{})
	require.True(t, ok)
	nested, ok := out["nested"].(map[string]interface{})
	require.True(t, ok)
	list, ok := nested["list"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 3)
}
