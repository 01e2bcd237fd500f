package realtime

import "encoding/json"

// Phoenix channel events used by the change-feed endpoint.
const (
	eventJoin            = "phx_join"
	eventReply           = "phx_reply"
	eventLeave           = "phx_leave"
	eventHeartbeat       = "heartbeat"
	eventAccessToken     = "access_token"
	eventPostgresChanges = "postgres_changes"
	eventSystem          = "system"

	heartbeatTopic = "phoenix"
)

// message is the Phoenix wire envelope.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

func newMessage(topic, event, ref string, payload any) (message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return message{}, err
	}
	return message{Topic: topic, Event: event, Payload: raw, Ref: ref}, nil
}

// joinPayload configures a catch-all postgres_changes listener for one
// table, scoped to the tenant, and carries the caller's access token so the
// realtime transport can re-establish its auth context.
func joinPayload(table, gymID, accessToken string) any {
	change := map[string]string{
		"event":  "*",
		"schema": "public",
		"table":  table,
	}
	if gymID != "" {
		change["filter"] = "gym_id=eq." + gymID
	}
	return map[string]any{
		"config": map[string]any{
			"broadcast":        map[string]bool{"self": false},
			"postgres_changes": []map[string]string{change},
		},
		"access_token": accessToken,
	}
}

// replyStatus extracts the status of a phx_reply payload.
func replyStatus(raw json.RawMessage) string {
	var reply struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return ""
	}
	return reply.Status
}
