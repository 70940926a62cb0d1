package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/notify"
	"flyvemdm/backend/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sent struct {
	kind   broker.Kind
	topic  string
	retain bool
	body   string
	scope  []broker.PushScope
}

// recorder is a transport middleware that keeps what it was asked to send.
type recorder struct {
	kind   broker.Kind
	mu     sync.Mutex
	out    []sent
	err    error
	onSend func(sent)
}

func (r *recorder) Kind() broker.Kind { return r.kind }

func (r *recorder) Handle(_ context.Context, m broker.Message, te broker.TransportEnvelope) error {
	s := sent{kind: r.kind, body: m.String()}
	switch e := te.(type) {
	case broker.MqttEnvelope:
		s.topic, s.retain = e.Topic, e.Retain
	case broker.FcmEnvelope:
		s.topic, s.scope = e.Topic, e.Scope
	}
	r.mu.Lock()
	r.out = append(r.out, s)
	hook, err := r.onSend, r.err
	r.mu.Unlock()
	if hook != nil {
		hook(s)
	}
	return err
}

func (r *recorder) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.out...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.out = nil
	r.mu.Unlock()
}

func (r *recorder) topics() []string {
	var out []string
	for _, s := range r.all() {
		out = append(out, s.topic)
	}
	return out
}

type harness struct {
	db         *gorm.DB
	r          Repos
	mq, fc     *recorder
	transports *config.Transports
	notifier   *notify.Notifier
	access     *MqttAccessService
	agents     *AgentService
	signals    *LocalSignaler
	status     *StatusService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:services-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the shared in-memory database free of table locks
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	h := &harness{
		db:         db,
		r:          NewRepos(db),
		mq:         &recorder{kind: broker.KindMQTT},
		fc:         &recorder{kind: broker.KindFCM},
		transports: config.NewTransports(true, true),
		signals:    NewLocalSignaler(),
	}
	h.notifier = notify.NewNotifier(h.transports, h.r.NotifyStore(), zerolog.Nop(), h.mq, h.fc)
	h.access = NewMqttAccessService(h.r.Mqtt)
	h.agents = NewAgentService(db, h.r, h.access, h.notifier, zerolog.Nop())
	h.status = NewStatusService(h.r, h.agents, nil, h.signals, zerolog.Nop())
	return h
}

func (h *harness) fleet(t *testing.T, entity uint, name string) *models.Fleet {
	t.Helper()
	f := &models.Fleet{EntityID: entity, Name: name}
	require.NoError(t, h.r.Fleets.Create(f))
	return f
}

// agent creates an enrolled agent with a broker account, as enrollment would.
func (h *harness) agent(t *testing.T, entity uint, serial string, fleet *models.Fleet) *models.Agent {
	t.Helper()
	d := &models.Device{EntityID: entity, Serial: serial}
	require.NoError(t, h.r.Devices.Upsert(d))
	u := &models.User{Username: "flyvemdm-" + uuid.NewString(), PasswordHash: "-", Role: models.RoleAgent, EntityID: entity}
	require.NoError(t, h.r.Users.Create(u))
	a := &models.Agent{
		Name:             serial,
		EntityID:         entity,
		DeviceID:         d.ID,
		FleetID:          fleet.ID,
		UserID:           u.ID,
		EnrollStatus:     models.EnrollStatusEnrolled,
		NotificationType: models.NotificationMQTT,
		IsOnline:         true,
	}
	require.NoError(t, h.r.Agents.Create(a))
	if serial != "" {
		_, err := h.access.Setup(serial, fmt.Sprintf("%d/agent/%s", entity, serial))
		require.NoError(t, err)
	}
	got, err := h.r.Agents.FindByID(a.ID)
	require.NoError(t, err)
	return got
}

func (h *harness) policy(t *testing.T, symbol string) *models.Policy {
	t.Helper()
	p := &models.Policy{Symbol: symbol, Name: symbol, Type: "bool", Default: "0"}
	require.NoError(t, h.r.Policies.Create(p))
	return p
}

func (h *harness) task(t *testing.T, p *models.Policy, f *models.Fleet) *models.Task {
	t.Helper()
	task := &models.Task{PolicyID: p.ID, ItemtypeApplied: models.AppliedToFleet, ItemsIDApplied: f.ID, Value: "1"}
	require.NoError(t, h.r.Tasks.Create(task))
	return task
}

const inventoryXML = `<?xml version="1.0" encoding="UTF-8"?>
<REQUEST>
  <CONTENT>
    <HARDWARE><NAME>pixel</NAME><UUID>u-1</UUID><OSNAME>Android</OSNAME><OSVERSION>13</OSVERSION></HARDWARE>
    <BIOS><SSN>%s</SSN><SMODEL>Pixel 7</SMODEL></BIOS>
  </CONTENT>
  <DEVICEID>pixel-2024</DEVICEID>
  <QUERY>INVENTORY</QUERY>
</REQUEST>`

func encodedInventory(serial string) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf(inventoryXML, serial)))
}

var admin = Actor{UserID: 1, Username: "admin", Role: models.RoleAdmin}
