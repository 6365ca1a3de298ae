package control

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dissssy/NeonCircle-sub001/internal/bot"
	"github.com/Dissssy/NeonCircle-sub001/internal/consent"
	"github.com/Dissssy/NeonCircle-sub001/internal/satellite"
)

func runServer(t *testing.T, input string) []map[string]interface{} {
	t.Helper()

	registry := satellite.NewRegistry()
	pool := satellite.NewPool()
	fleet := bot.NewFleet(registry, pool)
	store := consent.NewStore()

	var out bytes.Buffer
	server := NewServer(fleet, store, strings.NewReader(input), &out)
	server.Start()

	var messages []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &msg))
		messages = append(messages, msg)
	}
	return messages
}

func call(id int, tool string, args map[string]interface{}) string {
	msg := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      tool,
			"arguments": args,
		},
	}
	data, _ := json.Marshal(msg)
	return string(data) + "\n"
}

func TestServerAnnouncesTools(t *testing.T) {
	messages := runServer(t, "")
	require.NotEmpty(t, messages)
	assert.Equal(t, "initialize", messages[0]["method"])
}

func TestServerFleetStatus(t *testing.T) {
	messages := runServer(t, call(1, "fleet_status", nil))
	require.Len(t, messages, 2)

	result, ok := messages[1]["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, result, "satellites")
}

func TestServerSetConsent(t *testing.T) {
	input := call(1, "set_consent", map[string]interface{}{"userId": "user-1", "allowed": true})
	messages := runServer(t, input)
	require.Len(t, messages, 2)

	result, ok := messages[1]["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, result["success"])
}

func TestServerSetConsentMissingArgs(t *testing.T) {
	input := call(1, "set_consent", map[string]interface{}{"userId": "user-1"})
	messages := runServer(t, input)
	require.Len(t, messages, 2)

	result, ok := messages[1]["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, result, "error")
}

func TestServerResolveUnknownGuild(t *testing.T) {
	input := call(1, "resolve_assignment", map[string]interface{}{"guildId": "g1", "userId": "u1"})
	messages := runServer(t, input)
	require.Len(t, messages, 2)

	result, ok := messages[1]["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, result, "error", "unknown guild is a typed failure, not a default")
}

func TestServerUnknownTool(t *testing.T) {
	messages := runServer(t, call(1, "definitely_not_a_tool", nil))
	require.Len(t, messages, 2)

	result, ok := messages[1]["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, result["error"], "unknown tool")
}

func TestServerIgnoresMalformedLines(t *testing.T) {
	messages := runServer(t, "this is not json\n"+call(1, "fleet_status", nil))
	require.Len(t, messages, 2, "malformed lines are skipped, the loop keeps running")
}
