package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flyvemdm/agent/internal/config"
	"flyvemdm/agent/internal/db"
	"flyvemdm/agent/internal/device"
	"flyvemdm/agent/internal/state"
	"flyvemdm/backend/app/mqtt"

	"github.com/rs/zerolog"
)

// Device answers the commands of the backend the way an enrolled phone does.
type Device struct {
	Pub   mqtt.Publisher
	Sub   mqtt.Subscriber
	Store *db.Store
	State *state.State
	Info  device.Info
	Cfg   config.AppConfig
	Log   zerolog.Logger
	// OnUnenroll runs once the backend was told the agent is gone.
	OnUnenroll func()

	disp *Dispatcher
	now  func() time.Time
}

// Register installs every handler of the device on disp.
func (d *Device) Register(disp *Dispatcher) {
	d.disp = disp
	if d.now == nil {
		d.now = time.Now
	}
	disp.Register("Ping", HandlerFunc(d.ping))
	disp.Register("Geolocate", HandlerFunc(d.geolocate))
	disp.Register("Inventory", HandlerFunc(d.inventory))
	disp.Register("Reboot", HandlerFunc(d.reboot))
	disp.Register("Lock", HandlerFunc(d.lock))
	disp.Register("Wipe", HandlerFunc(d.wipe))
	disp.Register("Unenroll", HandlerFunc(d.unenroll))
	disp.Register("Subscribe", HandlerFunc(d.subscribe))
	disp.Register(Policy, HandlerFunc(d.policy))
}

func (d *Device) publish(ctx context.Context, sub string, payload []byte) error {
	return d.Pub.Publish(ctx, d.State.Topic()+"/Status/"+sub, d.Cfg.QoS, false, payload)
}

func (d *Device) publishJSON(ctx context.Context, sub string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return d.publish(ctx, sub, b)
}

func (d *Device) ping(ctx context.Context, _ Message) error {
	return d.publish(ctx, "Ping", []byte("!"))
}

func (d *Device) geolocate(ctx context.Context, _ Message) error {
	now := d.now().Unix()
	if !d.Cfg.GPS {
		return d.publishJSON(ctx, "Geolocation", map[string]any{"gps": "off", "datetime": now})
	}
	return d.publishJSON(ctx, "Geolocation", map[string]any{
		"latitude":  d.Cfg.Latitude,
		"longitude": d.Cfg.Longitude,
		"datetime":  now,
	})
}

func (d *Device) inventory(ctx context.Context, _ Message) error {
	enc, err := d.Info.EncodedInventory()
	if err != nil {
		return err
	}
	return d.publish(ctx, "Inventory", []byte(enc))
}

func (d *Device) online(ctx context.Context, v bool) error {
	return d.publishJSON(ctx, "Online", map[string]bool{"online": v})
}

// reboot goes offline and comes back after the configured delay without
// holding the message loop.
func (d *Device) reboot(ctx context.Context, _ Message) error {
	if err := d.online(ctx, false); err != nil {
		return err
	}
	d.Log.Warn().Dur("delay", d.Cfg.RebootDelay).Msg("rebooting")
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.Cfg.RebootDelay):
		}
		if err := d.online(ctx, true); err != nil {
			d.Log.Error().Err(err).Msg("cannot report online after reboot")
		}
	}()
	return nil
}

func (d *Device) lock(_ context.Context, m Message) error {
	var in struct {
		Lock string `json:"lock"`
	}
	if err := json.Unmarshal(m.Payload, &in); err != nil {
		return fmt.Errorf("bad lock command: %w", err)
	}
	switch in.Lock {
	case "now":
		d.State.SetLocked(true)
	case "unlock":
		d.State.SetLocked(false)
	default:
		return fmt.Errorf("bad lock value %q", in.Lock)
	}
	d.Log.Warn().Bool("locked", d.State.Locked()).Msg("lock state changed")
	return nil
}

func (d *Device) wipe(_ context.Context, m Message) error {
	var in struct {
		Wipe string `json:"wipe"`
	}
	if err := json.Unmarshal(m.Payload, &in); err != nil || in.Wipe != "now" {
		return fmt.Errorf("bad wipe command: %q", m.Payload)
	}
	if d.State.Wiped() {
		return nil
	}
	d.State.SetWiped(true)
	d.Log.Warn().Msg("factory reset requested, dropping applied policies")
	return d.Store.ClearPolicies()
}

func (d *Device) unenroll(ctx context.Context, m Message) error {
	var in struct {
		Unenroll string `json:"unenroll"`
	}
	if err := json.Unmarshal(m.Payload, &in); err != nil || in.Unenroll != "now" {
		return fmt.Errorf("bad unenroll command: %q", m.Payload)
	}
	if err := d.publishJSON(ctx, "Unenroll", map[string]string{"unenroll": "unenrolled"}); err != nil {
		return err
	}
	if err := d.Store.Reset(); err != nil {
		return err
	}
	d.Log.Warn().Msg("unenrolled")
	if d.OnUnenroll != nil {
		d.OnUnenroll()
	}
	return nil
}

// subscribe follows the fleet topic given by the backend. A null topic is the
// default fleet, which has none.
func (d *Device) subscribe(ctx context.Context, m Message) error {
	var in struct {
		Subscribe []struct {
			Topic *string `json:"topic"`
		} `json:"subscribe"`
	}
	if err := json.Unmarshal(m.Payload, &in); err != nil || len(in.Subscribe) == 0 {
		return fmt.Errorf("bad subscribe command: %q", m.Payload)
	}
	topic := ""
	if t := in.Subscribe[0].Topic; t != nil {
		topic = *t
	}
	if topic == d.State.FleetTopic() {
		return nil
	}
	d.State.SetFleetTopic(topic)
	if err := d.Store.SetFleetTopic(topic); err != nil {
		return err
	}
	d.Log.Info().Str("fleet", topic).Msg("fleet changed")
	return d.Follow(ctx, topic)
}

// Follow subscribes to the policies of a fleet topic.
func (d *Device) Follow(ctx context.Context, fleetTopic string) error {
	if fleetTopic == "" {
		return nil
	}
	return d.Sub.Subscribe(ctx, fleetTopic+"/Policy/#", d.Cfg.QoS, func(topic string, payload []byte) {
		_ = d.disp.Dispatch(context.Background(), topic, payload)
	})
}

// policyTopic splits "<fleet>/Policy/<symbol>/Task/<id>".
func policyTopic(fleet, topic string) (symbol string, taskID uint, err error) {
	rest := strings.TrimPrefix(topic, fleet+"/Policy/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "Task" {
		return "", 0, fmt.Errorf("bad policy topic %s", topic)
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad task id in %s", topic)
	}
	return parts[0], uint(id), nil
}

func (d *Device) taskStatus(ctx context.Context, taskID uint, status string) error {
	return d.publishJSON(ctx, fmt.Sprintf("Task/%d", taskID), map[string]string{"status": status})
}

func (d *Device) policy(ctx context.Context, m Message) error {
	symbol, taskID, err := policyTopic(d.State.FleetTopic(), m.Topic)
	if err != nil {
		return err
	}
	if len(m.Payload) == 0 {
		d.Log.Info().Str("policy", symbol).Uint("task", taskID).Msg("policy removed")
		return d.Store.RemovePolicy(taskID)
	}
	if err := d.taskStatus(ctx, taskID, "received"); err != nil {
		return err
	}

	var body map[string]json.RawMessage
	applyErr := json.Unmarshal(m.Payload, &body)
	raw, ok := body[symbol]
	if applyErr == nil && !ok {
		applyErr = errors.New("value missing")
	}
	if applyErr == nil {
		applyErr = d.Store.SavePolicy(&db.AppliedPolicy{TaskID: taskID, Symbol: symbol, Value: valueString(raw)})
	}
	if applyErr != nil {
		d.Log.Error().Err(applyErr).Str("policy", symbol).Uint("task", taskID).Msg("policy not applied")
		return errors.Join(applyErr, d.taskStatus(ctx, taskID, "failed"))
	}
	d.Log.Info().Str("policy", symbol).Uint("task", taskID).Msg("policy applied")
	return d.taskStatus(ctx, taskID, "done")
}

func valueString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
