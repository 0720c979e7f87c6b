package notification

import "strconv"

// buildAPSPayload assembles the shared part of a push body: the nested aps
// block followed by the flattened custom properties. Custom properties are
// plain map assignments, so a property named after a reserved key overwrites
// it; device_tokens and exclude_tokens are assigned by the callers afterwards
// and win any collision.
func buildAPSPayload(alert, badge, sound string, custom map[string]string) map[string]interface{} {
	result := make(map[string]interface{})

	aps := make(map[string]interface{})
	if alert != "" {
		aps["alert"] = alert
	}
	if badge != "" {
		aps["badge"] = coerceBadge(badge)
	}
	if sound != "" {
		aps["sound"] = sound
	}
	result["aps"] = aps

	for key, value := range custom {
		result[key] = value
	}

	return result
}

// coerceBadge converts a badge to an integer only when the value is a
// positive number whose integer round-trip equals the original string.
// "5" becomes 5; "05", "abc", "0" and negatives pass through unchanged.
func coerceBadge(badge string) interface{} {
	n, err := strconv.Atoi(badge)
	if err != nil || n <= 0 {
		return badge
	}
	if strconv.Itoa(n) != badge {
		return badge
	}
	return n
}
