package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/mqtt"

	"github.com/rs/zerolog"
)

var ErrUnknownStatus = errors.New("unknown status topic")

var taskStatuses = map[string]bool{
	models.TaskStatusPending:  true,
	models.TaskStatusReceived: true,
	models.TaskStatusDone:     true,
	models.TaskStatusFailed:   true,
	models.TaskStatusCanceled: true,
}

// StatusService records what agents report about themselves, over MQTT or
// REST, and wakes the queries waiting for it.
type StatusService struct {
	r        Repos
	agents   *AgentService
	importer InventoryImporter
	signals  Signaler
	log      zerolog.Logger
	now      func() time.Time
}

func NewStatusService(r Repos, agents *AgentService, importer InventoryImporter, signals Signaler, log zerolog.Logger) *StatusService {
	if importer == nil {
		importer = XMLImporter{}
	}
	return &StatusService{r: r, agents: agents, importer: importer, signals: signals, log: log, now: time.Now}
}

func (s *StatusService) signal(ctx context.Context, a *models.Agent) {
	if s.signals != nil {
		s.signals.Signal(ctx, agentKey(a.ID))
	}
}

// HandleStatus dispatches a message published under "<agent topic>/Status/...".
func (s *StatusService) HandleStatus(ctx context.Context, topic string, payload []byte) error {
	_, _, rest, ok := mqtt.AgentTopicParts(topic)
	if !ok || !strings.HasPrefix(rest, "Status/") {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, topic)
	}
	agent, err := s.agents.GetByTopic(topic)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", topic, err)
	}
	sub := strings.TrimPrefix(rest, "Status/")
	switch {
	case sub == "Ping":
		err = s.contact(agent, string(payload))
	case sub == "Online":
		if err = s.online(agent, payload); err == nil && !agent.IsOnline {
			s.refresh(ctx, agent)
		}
	case sub == "Geolocation":
		err = s.geolocation(agent, payload)
	case sub == "Inventory":
		err = s.inventory(agent, decodeInventory(string(payload)))
	case strings.HasPrefix(sub, "Task/"):
		err = s.task(agent, strings.TrimPrefix(sub, "Task/"), payload)
	case sub == "Unenroll":
		return s.agents.Delete(ctx, SystemActor, agent.ID)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStatus, topic)
	}
	if err != nil {
		return err
	}
	s.signal(ctx, agent)
	return nil
}

// refresh re-sends the latched commands to an agent that was offline, since
// push notifications are not retained by the provider.
func (s *StatusService) refresh(ctx context.Context, a *models.Agent) {
	fresh, err := s.r.Agents.FindByID(a.ID)
	if err != nil || !fresh.IsOnline {
		return
	}
	if err := s.agents.RefreshPersistedNotifications(ctx, fresh); err != nil {
		s.log.Warn().Err(err).Uint("agent", a.ID).Msg("cannot refresh persisted commands")
	}
}

// contact answers a ping: "!" refreshes the last contact of an online agent.
func (s *StatusService) contact(a *models.Agent, msg string) error {
	if msg != "!" || !a.IsOnline {
		return nil
	}
	return s.r.Agents.UpdateFields(a.ID, map[string]any{"last_contact": s.now()})
}

func (s *StatusService) online(a *models.Agent, payload []byte) error {
	var in struct {
		Online *bool `json:"online"`
	}
	if err := json.Unmarshal(payload, &in); err != nil || in.Online == nil {
		return fmt.Errorf("bad online status: %q", payload)
	}
	fields := map[string]any{"is_online": *in.Online}
	if *in.Online {
		fields["last_contact"] = s.now()
	}
	return s.r.Agents.UpdateFields(a.ID, fields)
}

// GeoReport is a position sent by a device. GPS "off" means no position.
type GeoReport struct {
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
	Accuracy  json.RawMessage `json:"accuracy"`
	Datetime  int64           `json:"datetime"`
	GPS       string          `json:"gps"`
}

func rawString(r json.RawMessage) string {
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r))
}

func (s *StatusService) geolocation(a *models.Agent, payload []byte) error {
	var in GeoReport
	if err := json.Unmarshal(payload, &in); err != nil {
		return fmt.Errorf("bad geolocation: %w", err)
	}
	return s.saveGeolocation(a, in)
}

func (s *StatusService) saveGeolocation(a *models.Agent, in GeoReport) error {
	g := &models.Geolocation{DeviceID: a.DeviceID, Date: s.now()}
	if in.Datetime > 0 {
		g.Date = time.Unix(in.Datetime, 0)
	}
	if strings.EqualFold(in.GPS, "off") {
		g.Latitude, g.Longitude = models.GeolocationUnavailable, models.GeolocationUnavailable
	} else {
		g.Latitude, g.Longitude, g.Accuracy = rawString(in.Latitude), rawString(in.Longitude), rawString(in.Accuracy)
		if g.Latitude == "" || g.Longitude == "" {
			return errors.New("geolocation without coordinates")
		}
	}
	return s.r.Telemetry.AddGeolocation(g)
}

func (s *StatusService) inventory(a *models.Agent, raw []byte) error {
	inv, err := s.importer.Import(raw)
	if err != nil {
		return err
	}
	if d := a.Device; d != nil {
		d.Name, d.UUID, d.Model = firstNonEmpty(inv.Name, d.Name), firstNonEmpty(inv.UUID, d.UUID), firstNonEmpty(inv.Model, d.Model)
		d.OSName, d.OSVersion = firstNonEmpty(inv.OSName, d.OSName), firstNonEmpty(inv.OSVersion, d.OSVersion)
		if err := s.r.Devices.Upsert(d); err != nil {
			return err
		}
	}
	return s.r.Telemetry.AddInventory(&models.InventorySnapshot{DeviceID: a.DeviceID, Checksum: inv.Checksum(), Raw: string(inv.Raw)})
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func (s *StatusService) task(a *models.Agent, id string, payload []byte) error {
	taskID, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return fmt.Errorf("bad task id %q", id)
	}
	var in struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &in); err != nil {
		return fmt.Errorf("bad task status: %w", err)
	}
	if !taskStatuses[in.Status] {
		return fmt.Errorf("unknown task status %q", in.Status)
	}
	st, err := s.r.Statuses.Find(a.ID, uint(taskID))
	if err != nil {
		return err
	}
	return s.r.Statuses.UpdateStatus(st.ID, in.Status)
}

// SelfReport is what an agent may change about itself over REST.
type SelfReport struct {
	IsOnline  *bool  `json:"is_online"`
	Inventory string `json:"_inventory"`
}

// ReportSelf applies a self report of the calling agent and refreshes its
// last contact.
func (s *StatusService) ReportSelf(ctx context.Context, actor Actor, in SelfReport) (*models.Agent, error) {
	a, err := s.self(actor)
	if err != nil {
		return nil, err
	}
	if in.Inventory != "" {
		if err := s.inventory(a, decodeInventory(in.Inventory)); err != nil {
			return nil, err
		}
	}
	fields := map[string]any{"last_contact": s.now()}
	if in.IsOnline != nil {
		fields["is_online"] = *in.IsOnline
	}
	if err := s.r.Agents.UpdateFields(a.ID, fields); err != nil {
		return nil, err
	}
	s.signal(ctx, a)
	return s.r.Agents.FindByID(a.ID)
}

// AddGeolocation stores a position sent by the calling agent.
func (s *StatusService) AddGeolocation(ctx context.Context, actor Actor, in GeoReport) error {
	a, err := s.self(actor)
	if err != nil {
		return err
	}
	if err := s.saveGeolocation(a, in); err != nil {
		return err
	}
	s.signal(ctx, a)
	return nil
}

func (s *StatusService) self(actor Actor) (*models.Agent, error) {
	if actor.Role != models.RoleAgent {
		return nil, ErrForbidden
	}
	return s.r.Agents.FindByUserID(actor.UserID)
}
