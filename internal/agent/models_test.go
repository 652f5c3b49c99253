package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGoal(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantClean  string
		wantTarget string
		wantQA     bool
	}{
		{"plain goal", "open the mail app", "open the mail app", "", false},
		{"test vocabulary", "test that the inbox loads", "test that the inbox loads", "", true},
		{"verify vocabulary", "verify the greeting appears", "verify the greeting appears", "", true},
		{"check vocabulary", "check the battery level", "check the battery level", "", true},
		{"vocabulary needs word boundary", "open the checkout page", "open the checkout page", "", false},
		{"contest is not test", "open the contest page", "open the contest page", "", false},
		{"app hint", "app:com.android.chrome open the news site", "open the news site", "com.android.chrome", true},
		{"app hint alone", "app:com.example.app", "", "com.example.app", true},
		{"case insensitive vocab", "Verify the result", "Verify the result", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			goal := ParseGoal(tc.raw)
			assert.Equal(t, tc.raw, goal.Raw)
			assert.Equal(t, tc.wantClean, goal.Cleaned)
			assert.Equal(t, tc.wantTarget, goal.TargetApp)
			assert.Equal(t, tc.wantQA, goal.QAMode)
		})
	}
}

func TestResolveKnownApp(t *testing.T) {
	apps := map[string]string{
		"mail":    "com.google.android.gm",
		"browser": "com.android.chrome",
	}

	assert.Equal(t, "com.google.android.gm", resolveKnownApp(apps, "open the mail app"))
	assert.Equal(t, "com.android.chrome", resolveKnownApp(apps, "launch the Browser, please"))
	assert.Equal(t, "", resolveKnownApp(apps, "open the mailbox"), "keyword matching is word-bounded")
	assert.Equal(t, "", resolveKnownApp(apps, "do nothing in particular"))
}
