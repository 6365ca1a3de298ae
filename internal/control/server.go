package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Dissssy/NeonCircle-sub001/internal/bot"
	"github.com/Dissssy/NeonCircle-sub001/internal/consent"
)

// Server is the operator control surface: JSON-RPC over stdio, one message
// per line. It exposes fleet inspection and consent administration; it never
// touches the audio hot path.
type Server struct {
	fleet   *bot.Fleet
	consent *consent.Store
	scanner *bufio.Scanner
	writer  *bufio.Writer
}

// NewServer creates a control server reading requests from in and writing
// responses to out.
func NewServer(fleet *bot.Fleet, store *consent.Store, in io.Reader, out io.Writer) *Server {
	return &Server{
		fleet:   fleet,
		consent: store,
		scanner: bufio.NewScanner(in),
		writer:  bufio.NewWriter(out),
	}
}

// Start begins the control loop and returns when the input stream ends.
func (s *Server) Start() {
	logrus.Info("Control server started")

	s.sendMessage(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "initialize",
		"params": map[string]interface{}{
			"protocolVersion": "0.1.0",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{
					"list": []map[string]interface{}{
						{
							"name":        "fleet_status",
							"description": "List every satellite and its voice connection",
						},
						{
							"name":        "resolve_assignment",
							"description": "Compute the satellite assignment for a user",
							"inputSchema": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"guildId": map[string]string{"type": "string"},
									"userId":  map[string]string{"type": "string"},
								},
								"required": []string{"guildId", "userId"},
							},
						},
						{
							"name":        "set_consent",
							"description": "Set or revoke a user's listening consent",
							"inputSchema": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"userId":  map[string]string{"type": "string"},
									"allowed": map[string]string{"type": "boolean"},
								},
								"required": []string{"userId", "allowed"},
							},
						},
					},
				},
			},
		},
	})

	for s.scanner.Scan() {
		line := s.scanner.Text()

		var msg map[string]interface{}
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logrus.WithError(err).Debug("Error parsing control message")
			continue
		}

		s.handleMessage(msg)
	}
}

func (s *Server) handleMessage(msg map[string]interface{}) {
	method, ok := msg["method"].(string)
	if !ok {
		return
	}

	id, hasID := msg["id"]

	switch method {
	case "initialize":
		if hasID {
			s.sendResponse(id, map[string]interface{}{
				"protocolVersion": "0.1.0",
				"serverInfo": map[string]interface{}{
					"name":    "neoncircle-control",
					"version": "0.1.0",
				},
			})
		}

	case "tools/call":
		params, ok := msg["params"].(map[string]interface{})
		if !ok {
			logrus.Warn("Invalid params in tools/call")
			return
		}
		toolName, ok := params["name"].(string)
		if !ok {
			logrus.Warn("Invalid tool name in tools/call")
			return
		}
		toolArgs, _ := params["arguments"].(map[string]interface{})

		result := s.executeTool(toolName, toolArgs)
		if hasID {
			s.sendResponse(id, result)
		}
	}
}

func (s *Server) executeTool(name string, args map[string]interface{}) interface{} {
	switch name {
	case "fleet_status":
		return map[string]interface{}{"satellites": s.fleet.Status()}

	case "resolve_assignment":
		if args == nil {
			return map[string]interface{}{"error": "missing arguments"}
		}
		guildID, ok := args["guildId"].(string)
		if !ok {
			return map[string]interface{}{"error": "missing or invalid 'guildId' parameter"}
		}
		userID, ok := args["userId"].(string)
		if !ok {
			return map[string]interface{}{"error": "missing or invalid 'userId' parameter"}
		}
		decision, err := s.fleet.Resolve(guildID, userID)
		if err != nil {
			return map[string]interface{}{"error": err.Error()}
		}
		result := map[string]interface{}{
			"decision":  decision.Kind.String(),
			"channelId": decision.ChannelID,
		}
		if decision.Satellite != nil {
			result["botId"] = decision.Satellite.BotID
		}
		if decision.InviteURL != "" {
			result["inviteUrl"] = decision.InviteURL
		}
		return result

	case "set_consent":
		if args == nil {
			return map[string]interface{}{"error": "missing arguments"}
		}
		userID, ok := args["userId"].(string)
		if !ok {
			return map[string]interface{}{"error": "missing or invalid 'userId' parameter"}
		}
		allowed, ok := args["allowed"].(bool)
		if !ok {
			return map[string]interface{}{"error": "missing or invalid 'allowed' parameter"}
		}
		s.consent.Set(userID, allowed)
		return map[string]interface{}{"success": true}

	default:
		return map[string]interface{}{"error": fmt.Sprintf("unknown tool: %s", name)}
	}
}

func (s *Server) sendMessage(msg map[string]interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal control message")
		return
	}
	if _, err := s.writer.Write(data); err != nil {
		logrus.WithError(err).Debug("Failed to write control message")
		return
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		logrus.WithError(err).Debug("Failed to write control message")
		return
	}
	if err := s.writer.Flush(); err != nil {
		logrus.WithError(err).Debug("Failed to flush control message")
	}
}

func (s *Server) sendResponse(id interface{}, result interface{}) {
	s.sendMessage(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}
