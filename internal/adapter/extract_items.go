package adapter

// ExtractItems unwraps a source's response envelope to the list of raw
// result items, trying each known envelope key in precedence order. It
// returns nil when no known envelope key holds a list.
func ExtractItems(results map[string]interface{}) []map[string]interface{} {
	envelopeKeys := []string{"organic", "places", "results", "elements", "features"}

	for _, key := range envelopeKeys {
		if raw, ok := results[key]; ok {
			if items, ok := toItemSlice(raw); ok {
				return items
			}
		}
	}

	return nil
}

func toItemSlice(raw interface{}) ([]map[string]interface{}, bool) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, false
	}
	items := make([]map[string]interface{}, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]interface{}); ok {
			items = append(items, m)
		}
	}
	return items, true
}
