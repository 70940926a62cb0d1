package mqtt

import "strings"

// Match reports whether topic matches the subscription filter, honouring the
// single level (+) and multi level (#) wildcards.
func Match(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		if f == "#" {
			return i == len(fs)-1
		}
		if i >= len(ts) {
			return false
		}
		if f != "+" && f != ts[i] {
			return false
		}
	}
	return len(fs) == len(ts)
}

// AgentTopicParts splits "<entity>/agent/<serial>/<rest...>".
func AgentTopicParts(topic string) (entity, serial, rest string, ok bool) {
	parts := strings.SplitN(topic, "/", 4)
	if len(parts) < 3 || parts[1] != "agent" || parts[0] == "" || parts[2] == "" {
		return "", "", "", false
	}
	if len(parts) == 4 {
		rest = parts[3]
	}
	return parts[0], parts[2], rest, true
}
