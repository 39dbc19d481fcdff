package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsExtraction_StructuredSourcesDoNotNeedIt(t *testing.T) {
	assert.False(t, NeedsExtraction("google_places"))
	assert.False(t, NeedsExtraction("government_geojson"))
	assert.False(t, NeedsExtraction("overture_release"))
}

func TestNeedsExtraction_UnstructuredSourcesNeedIt(t *testing.T) {
	assert.True(t, NeedsExtraction("serper"))
	assert.True(t, NeedsExtraction("openstreetmap"))
}

func TestNeedsExtraction_UnknownSourceDefaultsToTrue(t *testing.T) {
	assert.True(t, NeedsExtraction("some_future_connector"))
}

func TestRun_GooglePlacesLegacyFields(t *testing.T) {
	raw := map[string]interface{}{
		"place_id":           "g1",
		"name":               "Oriam Sports Centre",
		"formatted_address":  "Heriot-Watt University, Edinburgh",
		"geometry":           map[string]interface{}{"location": map[string]interface{}{"lat": 55.9, "lng": -3.3}},
		"types":              []interface{}{"gym", "point_of_interest"},
	}

	attrs, err := Run("google_places", raw)

	require.NoError(t, err)
	assert.Equal(t, "Oriam Sports Centre", attrs["entity_name"])
	assert.Equal(t, "g1", attrs["external_id"])
	assert.Equal(t, 55.9, attrs["latitude"])
	assert.Equal(t, -3.3, attrs["longitude"])
	assert.Equal(t, "Heriot-Watt University, Edinburgh", attrs["address"])
	assert.Equal(t, []string{"gym", "point_of_interest"}, attrs["raw_categories"])
}

func TestRun_GooglePlacesV1Fields(t *testing.T) {
	raw := map[string]interface{}{
		"id":               "places/abc",
		"displayName":      map[string]interface{}{"text": "Oriam"},
		"location":         map[string]interface{}{"latitude": 55.9, "longitude": -3.3},
		"formattedAddress": "Riccarton, Edinburgh",
	}

	attrs, err := Run("google_places", raw)

	require.NoError(t, err)
	assert.Equal(t, "Oriam", attrs["entity_name"])
	assert.Equal(t, "places/abc", attrs["external_id"])
}

func TestRun_MissingEntityNameFails(t *testing.T) {
	_, err := Run("google_places", map[string]interface{}{"place_id": "g1"})
	assert.Error(t, err)
}

func TestRun_UnregisteredSourceFails(t *testing.T) {
	_, err := Run("unknown_source", map[string]interface{}{"entity_name": "x"})
	assert.Error(t, err)
}

func TestValidate_DropsOutOfRangeCoordinates(t *testing.T) {
	extracted := map[string]interface{}{
		"entity_name": "Test",
		"latitude":    200.0,
		"longitude":   -3.3,
	}

	validated, err := Validate(extracted)

	require.NoError(t, err)
	_, hasLat := validated["latitude"]
	assert.False(t, hasLat)
	assert.Equal(t, -3.3, validated["longitude"])
}

func TestValidate_DedupesRawCategories(t *testing.T) {
	extracted := map[string]interface{}{
		"entity_name":    "Test",
		"raw_categories": []string{"gym", "gym", " gym ", "pool"},
	}

	validated, err := Validate(extracted)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gym", "pool"}, validated["raw_categories"])
}

func TestValidate_RejectsExtractionBoundaryViolation(t *testing.T) {
	extracted := map[string]interface{}{
		"entity_name":          "Test",
		"canonical_activities": []string{"tennis"},
	}

	_, err := Validate(extracted)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "extraction boundary")
}

func TestValidate_MissingEntityNameFails(t *testing.T) {
	_, err := Validate(map[string]interface{}{"latitude": 1.0})
	assert.Error(t, err)
}

func TestSplit_PartitionsSchemaVsDiscoveredFields(t *testing.T) {
	validated := map[string]interface{}{
		"entity_name":      "Test",
		"latitude":         55.9,
		"some_weird_field": "value",
	}

	attributes, discovered := Split(validated)

	assert.Equal(t, "Test", attributes["entity_name"])
	assert.Equal(t, 55.9, attributes["latitude"])
	assert.NotContains(t, attributes, "some_weird_field")
	assert.Equal(t, "value", discovered["some_weird_field"])
}

func TestRun_OpenStreetMapTagExtraction(t *testing.T) {
	raw := map[string]interface{}{
		"type": "node",
		"id":   float64(123),
		"lat":  55.9,
		"lon":  -3.3,
		"tags": map[string]interface{}{
			"name":    "Meadows Tennis Courts",
			"leisure": "pitch",
			"sport":   "tennis",
		},
	}

	attrs, err := Run("openstreetmap", raw)

	require.NoError(t, err)
	assert.Equal(t, "Meadows Tennis Courts", attrs["entity_name"])
	assert.Equal(t, "node/123", attrs["external_id"])
	assert.ElementsMatch(t, []string{"pitch", "tennis"}, attrs["raw_categories"])
}

func TestRun_OvertureReleaseNamesPrimaryFallback(t *testing.T) {
	raw := map[string]interface{}{
		"id":    "overture-1",
		"names": map[string]interface{}{"primary": "Oriam"},
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []interface{}{-3.3, 55.9},
		},
		"categories": map[string]interface{}{"primary": "sports_centre"},
		"sources": []interface{}{
			map[string]interface{}{"dataset": "meta"},
		},
	}

	attrs, err := Run("overture_release", raw)

	require.NoError(t, err)
	assert.Equal(t, "Oriam", attrs["entity_name"])
	assert.Equal(t, -3.3, attrs["longitude"])
	assert.Equal(t, 55.9, attrs["latitude"])
	assert.Equal(t, []string{"sports_centre"}, attrs["raw_categories"])
	assert.Equal(t, []string{"meta"}, attrs["overture_source_datasets"])
}

func TestRun_GovernmentGeoJSONFeature(t *testing.T) {
	raw := map[string]interface{}{
		"id": "feature-1",
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []interface{}{-3.21, 55.94},
		},
		"properties": map[string]interface{}{
			"name":          "Meggetland Sports Complex",
			"facility_type": "sports_centre",
		},
	}

	attrs, err := Run("government_geojson", raw)

	require.NoError(t, err)
	assert.Equal(t, "Meggetland Sports Complex", attrs["entity_name"])
	assert.Equal(t, "feature-1", attrs["external_id"])
	assert.Equal(t, []string{"sports_centre"}, attrs["raw_categories"])
}
