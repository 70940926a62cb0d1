package controllers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/controllers"
	"flyvemdm/backend/app/dto"
	jwtutil "flyvemdm/backend/app/jwt"
	"flyvemdm/backend/app/middleware"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/notify"
	"flyvemdm/backend/app/services"
	"flyvemdm/backend/config"
	"flyvemdm/backend/router"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// topicLog is an MQTT transport that only records the topics it publishes to.
type topicLog struct {
	mu     sync.Mutex
	topics []string
}

func (l *topicLog) Kind() broker.Kind { return broker.KindMQTT }

func (l *topicLog) Handle(_ context.Context, _ broker.Message, env broker.TransportEnvelope) error {
	if e, ok := env.(broker.MqttEnvelope); ok {
		l.mu.Lock()
		l.topics = append(l.topics, e.Topic)
		l.mu.Unlock()
	}
	return nil
}

func (l *topicLog) has(topic string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.topics {
		if t == topic {
			return true
		}
	}
	return false
}

type server struct {
	h   http.Handler
	mq  *topicLog
	ids []string
}

func newServer(t *testing.T) *server {
	t.Helper()
	dsn := fmt.Sprintf("file:controllers-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	log := zerolog.Nop()
	repos := services.NewRepos(db)
	transports := config.NewTransports(true, false)
	mq := &topicLog{}
	notifier := notify.NewNotifier(transports, repos.NotifyStore(), log, mq)
	signer := &jwtutil.Signer{Secret: []byte("test"), Issuer: "flyvemdm", ExpMin: 5}
	access := services.NewMqttAccessService(repos.Mqtt)
	agents := services.NewAgentService(db, repos, access, notifier, log)
	users := services.NewUserService(repos.Users)
	require.NoError(t, users.EnsureAdmin("admin", "admin123"))

	enroll := services.NewEnrollmentService(db, repos,
		config.MQTT{ClientAddress: "broker.example.com", ClientPort: 1883},
		config.Enrollment{Debug: true},
		services.EnrollmentDeps{Transports: transports, Tokens: signer, Access: access, Agents: agents}, log)
	signals := services.NewLocalSignaler()
	status := services.NewStatusService(repos, agents, nil, signals, log)
	queries := services.NewQueryService(repos, notifier, services.Poller{Interval: 5 * time.Millisecond, Attempts: 2, Signals: signals}, log)

	h := router.NewRouter(router.Controllers{
		HTTP:      controllers.NewHTTPController(),
		Auth:      controllers.NewAuthController(users, signer),
		Admin:     controllers.NewAdminController(users, services.NewInvitationService(db, repos, 0, log), services.NewFleetService(repos, log), services.NewTaskService(db, repos, notifier, log)),
		Agents:    controllers.NewAgentController(agents, queries, status),
		Devices:   controllers.NewDeviceController(services.NewDeviceService(repos, agents)),
		Enroll:    controllers.NewEnrollController(enroll),
		Mosquitto: controllers.NewMosquittoController(services.NewMosquittoAuthService(repos.Mqtt, "backend", "secret")),
		MqttLog:   controllers.NewMqttLogController(services.NewMqttLogService(repos)),
	}, &middleware.Auth{Signer: signer})
	return &server{h: middleware.Logging(h), mq: mq}
}

func (s *server) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func (s *server) login(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/login", "", dto.LoginRequest{Username: "admin", Password: "admin123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	return tok.AccessToken
}

const inventory = `<?xml version="1.0" encoding="UTF-8"?>
<REQUEST><CONTENT>
<HARDWARE><NAME>pixel</NAME><UUID>u-1</UUID></HARDWARE>
<BIOS><SSN>SN123</SSN><SMODEL>Pixel 7</SMODEL></BIOS>
</CONTENT><DEVICEID>pixel-2024</DEVICEID><QUERY>INVENTORY</QUERY></REQUEST>`

// enroll invites owner@example.com on entity 12 and enrolls SN123 with it.
func (s *server) enroll(t *testing.T, admin string) dto.EnrollResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/admin/invitations", admin, dto.InvitationRequest{Email: "owner@example.com", EntityID: 12})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv dto.InvitationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))

	perm := true
	rec = s.do(t, http.MethodPost, "/enroll", "", services.EnrollRequest{
		InvitationToken:     inv.Token,
		Email:               "owner@example.com",
		Version:             "2.1.0",
		MdmType:             models.MdmTypeAndroid,
		NotificationType:    models.NotificationMQTT,
		Inventory:           base64.StdEncoding.EncodeToString([]byte(inventory)),
		HasSystemPermission: &perm,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out dto.EnrollResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLogin(t *testing.T) {
	s := newServer(t)
	require.NotEmpty(t, s.login(t))

	rec := s.do(t, http.MethodPost, "/login", "", dto.LoginRequest{Username: "admin", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodPost, "/login", "", dto.LoginRequest{Username: "admin"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesNeedToken(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/admin/agents", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestEnrollThenBrokerAuth(t *testing.T) {
	s := newServer(t)
	enrolled := s.enroll(t, s.login(t))
	require.Equal(t, "12/agent/SN123", enrolled.Topic)
	require.Equal(t, "SN123", enrolled.Agent.Serial)
	require.True(t, s.mq.has("12/agent/SN123/Command/Subscribe"))

	mosquitto := func(mode string, form url.Values) int {
		req := httptest.NewRequest(http.MethodPost, "/mqtt/auth?"+mode, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.h.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusOK, mosquitto("authenticate", url.Values{"username": {"SN123"}, "password": {enrolled.MqttPassword}}))
	require.Equal(t, http.StatusForbidden, mosquitto("authenticate", url.Values{"username": {"SN123"}, "password": {"nope"}}))
	require.Equal(t, http.StatusOK, mosquitto("authorize", url.Values{"username": {"SN123"}, "topic": {"12/agent/SN123/Status/Ping"}, "acc": {"2"}}))
	require.Equal(t, http.StatusForbidden, mosquitto("authorize", url.Values{"username": {"SN123"}, "topic": {"12/agent/SN124/Status/Ping"}, "acc": {"2"}}))
	require.Equal(t, http.StatusOK, mosquitto("superuser", url.Values{"username": {"backend"}}))
	require.Equal(t, http.StatusBadRequest, mosquitto("", url.Values{"username": {"backend"}}))
}

func TestEnrollHidesFailureReason(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/enroll", "", services.EnrollRequest{InvitationToken: "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invitation token invalid")
}

func TestAdminWipeSendsCommand(t *testing.T) {
	s := newServer(t)
	admin := s.login(t)
	enrolled := s.enroll(t, admin)

	wipe := true
	rec := s.do(t, http.MethodPut, fmt.Sprintf("/admin/agents?id=%d", enrolled.Agent.ID), admin, dto.AgentUpdateRequest{Wipe: &wipe})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got dto.AgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Wipe)
	require.Empty(t, got.Warning)
	require.True(t, s.mq.has("12/agent/SN123/Command/Wipe"))

	rec = s.do(t, http.MethodGet, "/admin/agents?id=999", admin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentTokenScope(t *testing.T) {
	s := newServer(t)
	enrolled := s.enroll(t, s.login(t))
	token := enrolled.APIToken
	target := fmt.Sprintf("/agent/agents?id=%d", enrolled.Agent.ID)

	online := true
	rec := s.do(t, http.MethodPut, "/agent/self", token, services.SelfReport{IsOnline: &online})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/admin/agents", token, nil).Code)

	wipe := true
	rec = s.do(t, http.MethodPut, target, token, dto.AgentUpdateRequest{Wipe: &wipe})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, target, token, dto.AgentUpdateRequest{Unenroll: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got dto.AgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, models.EnrollStatusUnenrolling, got.EnrollStatus)
	require.True(t, s.mq.has("12/agent/SN123/Command/Unenroll"))
}

func TestPingTimeoutIsGatewayTimeout(t *testing.T) {
	s := newServer(t)
	admin := s.login(t)
	enrolled := s.enroll(t, admin)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/admin/agents/ping?id=%d", enrolled.Agent.ID), admin, nil)
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	require.JSONEq(t, `{"error":"Timeout querying the device"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/admin/agents/ping?id=%d", enrolled.Agent.ID), admin, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEntityQuotaAndPurge(t *testing.T) {
	s := newServer(t)
	admin := s.login(t)

	rec := s.do(t, http.MethodPut, "/admin/entities?id=12", admin, dto.EntityRequest{DeviceLimit: -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/admin/entities?id=12", admin, dto.EntityRequest{DeviceLimit: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodGet, "/admin/entities?id=12", admin, nil)
	require.JSONEq(t, `{"entity_id":12,"device_limit":1}`, rec.Body.String())

	s.enroll(t, admin)

	rec = s.do(t, http.MethodDelete, "/admin/devices?entity_id=12", admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodGet, "/admin/agents", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
	require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/admin/devices", admin, nil).Code)
}

func TestDeleteFleet(t *testing.T) {
	s := newServer(t)
	admin := s.login(t)

	rec := s.do(t, http.MethodPost, "/admin/fleets", admin, dto.FleetRequest{Name: "field", EntityID: 12})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created dto.FleetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = s.do(t, http.MethodGet, "/admin/fleets?entity_id=12", admin, nil)
	var fleets []dto.FleetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fleets))
	var def uint
	for _, f := range fleets {
		if f.IsDefault {
			def = f.ID
		}
	}
	require.NotZero(t, def)

	require.Equal(t, http.StatusConflict, s.do(t, http.MethodDelete, fmt.Sprintf("/admin/fleets?id=%d", def), admin, nil).Code)
	require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/admin/fleets", admin, nil).Code)
	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/admin/fleets?id=%d", created.ID), admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, fmt.Sprintf("/admin/fleets?id=%d", created.ID), admin, nil).Code)
}
