package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceBadge(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"5", 5},
		{"1", 1},
		{"42", 42},
		{"05", "05"},
		{"abc", "abc"},
		{"0", "0"},
		{"-3", "-3"},
		{"5 ", "5 "},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coerceBadge(tt.in), "badge %q", tt.in)
	}
}

func TestNotificationPayload(t *testing.T) {
	n := &Notification{Alert: "Hi", Badge: "3", Sound: "ping.aiff"}

	got := n.Payload("ABCDEF")

	assert.Equal(t, map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": "Hi",
			"badge": 3,
			"sound": "ping.aiff",
		},
		"device_tokens": "ABCDEF",
	}, got)
}

func TestNotificationPayload_EmptyFieldsOmitted(t *testing.T) {
	n := &Notification{Alert: "Hi"}

	got := n.Payload("ABCDEF")

	assert.Equal(t, map[string]interface{}{"alert": "Hi"}, got["aps"])
}

func TestNotificationPayload_CustomPropertiesFlattened(t *testing.T) {
	n := &Notification{
		Alert:            "Hi",
		CustomProperties: map[string]string{"screen": "inbox", "ref": "42"},
	}

	got := n.Payload("ABCDEF")

	assert.Equal(t, "inbox", got["screen"])
	assert.Equal(t, "42", got["ref"])
}

func TestNotificationPayload_CustomPropertyOverwritesAPS(t *testing.T) {
	n := &Notification{
		Alert:            "Hi",
		CustomProperties: map[string]string{"aps": "overridden"},
	}

	got := n.Payload("ABCDEF")

	// Custom properties are assigned after the aps block and win.
	assert.Equal(t, "overridden", got["aps"])
}

func TestNotificationPayload_DeviceTokensAlwaysWin(t *testing.T) {
	n := &Notification{
		CustomProperties: map[string]string{"device_tokens": "spoofed"},
	}

	got := n.Payload("ABCDEF")

	assert.Equal(t, "ABCDEF", got["device_tokens"])
}

func TestBroadcastPayload(t *testing.T) {
	b := &BroadcastNotification{Alert: "All hands", Badge: "1"}

	got := b.Payload([]string{"AAAA", "BBBB"})

	assert.Equal(t, map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": "All hands",
			"badge": 1,
		},
		"exclude_tokens": []string{"AAAA", "BBBB"},
	}, got)
}

func TestBroadcastPayload_NilExclusionsBecomeEmptyList(t *testing.T) {
	b := &BroadcastNotification{Alert: "All hands"}

	got := b.Payload(nil)

	assert.Equal(t, []string{}, got["exclude_tokens"])
}
