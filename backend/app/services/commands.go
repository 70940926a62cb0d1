package services

import (
	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/models"
)

type Command string

const (
	CommandWipe      Command = "Wipe"
	CommandLock      Command = "Lock"
	CommandUnlock    Command = "Unlock"
	CommandUnenroll  Command = "Unenroll"
	CommandSubscribe Command = "Subscribe"
	CommandPing      Command = "Ping"
	CommandReboot    Command = "Reboot"
	CommandGeolocate Command = "Geolocate"
	CommandInventory Command = "Inventory"
)

// cleanupCommands are the command subtopics cleared of retained messages.
var cleanupCommands = []Command{
	CommandSubscribe, CommandPing, CommandReboot, CommandGeolocate,
	CommandInventory, CommandLock, CommandWipe, CommandUnenroll,
}

// Subtopic is the command topic suffix. Unlock shares the Lock topic.
func (c Command) Subtopic() string {
	if c == CommandUnlock {
		return "Command/Lock"
	}
	return "Command/" + string(c)
}

func (c Command) retained() bool {
	switch c {
	case CommandWipe, CommandLock, CommandUnlock, CommandUnenroll, CommandSubscribe:
		return true
	}
	return false
}

func (c Command) pushed() bool { return c != CommandSubscribe }

func (c Command) body() any {
	switch c {
	case CommandWipe:
		return map[string]string{"wipe": "now"}
	case CommandLock:
		return map[string]string{"lock": "now"}
	case CommandUnlock:
		return map[string]string{"lock": "unlock"}
	case CommandUnenroll:
		return map[string]string{"unenroll": "now"}
	default:
		return map[string]string{"query": string(c)}
	}
}

type subscribeTopic struct {
	Topic *string `json:"topic"`
}

// commandEnvelope builds the envelope of cmd for agent. The MQTT part is
// left out when the agent has no topic.
func commandEnvelope(agent *models.Agent, cmd Command) (*broker.Envelope, error) {
	msg, err := broker.NewJSONMessage(cmd.body())
	if err != nil {
		return nil, err
	}
	return agentEnvelope(agent, msg, cmd.Subtopic(), cmd.retained(), cmd.pushed()), nil
}

// subscribeEnvelope points the agent at its fleet topic, or at nothing when
// the fleet is the default one.
func subscribeEnvelope(agent *models.Agent, fleet *models.Fleet) (*broker.Envelope, error) {
	var topic *string
	if t := fleet.Topic(); t != "" {
		topic = &t
	}
	msg, err := broker.NewJSONMessage(map[string][]subscribeTopic{"subscribe": {{Topic: topic}}})
	if err != nil {
		return nil, err
	}
	return agentEnvelope(agent, msg, CommandSubscribe.Subtopic(), true, false), nil
}

func agentEnvelope(agent *models.Agent, msg broker.Message, suffix string, retain, push bool) *broker.Envelope {
	base := agent.Topic()
	if base == "" {
		// without a serial the agent has no address on any transport
		return broker.NewEnvelope(msg)
	}
	transports := []broker.TransportEnvelope{broker.MqttEnvelope{Topic: base + "/" + suffix, Retain: retain}}
	if push {
		transports = append(transports, broker.FcmEnvelope{
			Topic: base + "/" + suffix,
			Scope: []broker.PushScope{{Type: agent.PushScopeType(), Token: agent.NotificationToken}},
		})
	}
	return broker.NewEnvelope(msg, transports...)
}

func policyMessage(symbol, value string, taskID uint) (broker.Message, error) {
	return broker.NewJSONMessage(map[string]any{symbol: value, "taskId": taskID})
}

// latches is the part of an agent that decides which commands to emit.
type latches struct {
	Wipe   bool
	Lock   bool
	Status string
}

func latchesOf(a *models.Agent) latches {
	return latches{Wipe: a.Wipe, Lock: a.Lock, Status: a.EnrollStatus}
}

// normalize applies wipe precedence: a wiped (or being wiped) device is
// never locked.
func (l latches) normalize() latches {
	if l.Wipe {
		l.Lock = false
	}
	return l
}

// commandsFor lists the commands a transition from before to after emits.
func commandsFor(before, after latches) []Command {
	var out []Command
	switch {
	case after.Wipe && !before.Wipe:
		out = append(out, CommandWipe)
	case !after.Wipe && after.Lock && !before.Lock:
		out = append(out, CommandLock)
	case !after.Wipe && !after.Lock && before.Lock:
		out = append(out, CommandUnlock)
	}
	if after.Status == models.EnrollStatusUnenrolling && before.Status != models.EnrollStatusUnenrolling {
		out = append(out, CommandUnenroll)
	}
	return out
}
