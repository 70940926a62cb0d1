package services

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtutil "flyvemdm/backend/app/jwt"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	err   error
	calls int
}

func (p *fakePusher) TestConnection(context.Context, string) error {
	p.calls++
	return p.err
}

// strictImporter fails the test if the inventory is parsed at all.
type strictImporter struct{ t *testing.T }

func (i strictImporter) Import([]byte) (*Inventory, error) {
	i.t.Fatal("inventory must not be parsed")
	return nil, nil
}

type enrollFixture struct {
	*harness
	svc     *EnrollmentService
	pusher  *fakePusher
	invites *InvitationService
	signer  *jwtutil.Signer
}

func newEnrollFixture(t *testing.T, cfg config.Enrollment) *enrollFixture {
	h := newHarness(t)
	f := &enrollFixture{
		harness: h,
		pusher:  &fakePusher{},
		invites: NewInvitationService(h.db, h.r, 0, zerolog.Nop()),
		signer:  &jwtutil.Signer{Secret: []byte("test"), Issuer: "flyvemdm", ExpMin: 5},
	}
	mqttCfg := config.MQTT{ClientAddress: "broker.example.com", ClientPort: 1883, ClientTLSPort: 8883}
	f.svc = NewEnrollmentService(h.db, h.r, mqttCfg, cfg, EnrollmentDeps{
		Transports: h.transports,
		Pusher:     f.pusher,
		Tokens:     f.signer,
		Access:     h.access,
		Agents:     h.agents,
	}, zerolog.Nop())
	return f
}

func (f *enrollFixture) invite(t *testing.T) *models.Invitation {
	inv, err := f.invites.Invite(SystemActor, "owner@example.com", 12)
	require.NoError(t, err)
	return inv
}

func request(token, serial string) EnrollRequest {
	return EnrollRequest{
		InvitationToken:     token,
		Email:               "owner@example.com",
		Version:             "2.1.0",
		MdmType:             models.MdmTypeAndroid,
		NotificationType:    models.NotificationMQTT,
		Inventory:           encodedInventory(serial),
		HasSystemPermission: boolp(true),
	}
}

func TestEnrollSuccess(t *testing.T) {
	f := newEnrollFixture(t, config.Enrollment{})
	inv := f.invite(t)

	res, err := f.svc.Enroll(context.Background(), request(inv.Token, "SN123"))
	require.NoError(t, err)
	require.Equal(t, "12/agent/SN123", res.Topic)
	require.Equal(t, "broker.example.com", res.Broker)
	require.NotEmpty(t, res.MqttPassword)
	require.Equal(t, models.EnrollStatusEnrolled, res.Agent.EnrollStatus)
	require.True(t, res.Agent.Fleet.IsDefault)

	claims, err := f.signer.Parse(res.APIToken)
	require.NoError(t, err)
	require.Equal(t, models.RoleAgent, claims.Role)
	require.Equal(t, res.Agent.UserID, claims.UserID)

	stored, err := f.r.Invitations.FindByToken(inv.Token)
	require.NoError(t, err)
	require.Equal(t, models.InvitationDone, stored.Status)

	// retained state is cleared before the agent is subscribed
	topics := f.mq.topics()
	require.Len(t, topics, 9)
	require.Equal(t, "12/agent/SN123/Command/Subscribe", topics[8])
	require.JSONEq(t, `{"subscribe":[{"topic":null}]}`, f.mq.all()[8].body)

	auth := NewMosquittoAuthService(f.r.Mqtt, "backend", "secret")
	require.True(t, auth.Authenticate("SN123", res.MqttPassword))
	require.False(t, auth.Authenticate("SN123", "guess"))
	require.True(t, auth.Authorize("SN123", "12/agent/SN123/Status/Ping", AccWrite))
	require.True(t, auth.Authorize("SN123", "12/agent/SN123/Command/Lock", AccSubscribe))
	require.False(t, auth.Authorize("SN123", "12/agent/SN123/Command/Lock", AccWrite))
	require.False(t, auth.Authorize("SN123", "12/agent/OTHER/Command/Lock", AccRead))

	snap, err := f.r.Telemetry.LatestInventory(res.Agent.DeviceID)
	require.NoError(t, err)
	require.Len(t, snap.Checksum, 64)
}

func TestEnrollRejectsConsumedInvitation(t *testing.T) {
	f := newEnrollFixture(t, config.Enrollment{})
	inv := f.invite(t)
	_, err := f.svc.Enroll(context.Background(), request(inv.Token, "SN123"))
	require.NoError(t, err)

	_, err = f.svc.Enroll(context.Background(), request(inv.Token, "SN456"))
	var ee *EnrollmentError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "Invitation is not pending", ee.Message)
	require.Equal(t, "Enrollment failed", ee.Public)
	require.ErrorIs(t, err, ErrInvitationConsumed)

	n, err := f.r.Agents.CountByEntity(12)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestEnrollRejectsExpiredInvitation(t *testing.T) {
	f := newEnrollFixture(t, config.Enrollment{Debug: true})
	inv := f.invite(t)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.db.Model(&models.Invitation{}).Where("id = ?", inv.ID).Update("expiration_date", past).Error)

	_, err := f.svc.Enroll(context.Background(), request(inv.Token, "SN123"))
	var ee *EnrollmentError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "Invitation token expired", ee.Public)

	logs, err := f.r.Invitations.Logs(inv.ID)
	require.NoError(t, err)
	require.Equal(t, "Invitation token expired", logs[len(logs)-1].Event)
}

func TestEnrollChecksPushBeforeInventory(t *testing.T) {
	f := newEnrollFixture(t, config.Enrollment{Debug: true})
	f.svc.deps.Importer = strictImporter{t}
	f.pusher.err = errors.New("unregistered token")
	inv := f.invite(t)

	req := request(inv.Token, "SN123")
	req.NotificationType = models.NotificationFCM
	req.NotificationToken = "device-token"
	req.Inventory = "not even xml"
	_, err := f.svc.Enroll(context.Background(), req)
	var ee *EnrollmentError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "Invalid FCM credentials", ee.Message)
	require.Equal(t, 1, f.pusher.calls)

	stored, err := f.r.Invitations.FindByToken(inv.Token)
	require.NoError(t, err)
	require.Equal(t, models.InvitationPending, stored.Status)
}

func TestEnrollValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*EnrollRequest)
		want   string
	}{
		{"unknown token", func(r *EnrollRequest) { r.InvitationToken = "nope" }, "Invitation token invalid"},
		{"no channel", func(r *EnrollRequest) { r.NotificationType = "carrier-pigeon" }, "Notification settings are invalid"},
		{"push without token", func(r *EnrollRequest) { r.NotificationType = models.NotificationFCM }, "Notification token is missing"},
		{"no inventory", func(r *EnrollRequest) { r.Inventory = "" }, "Device inventory XML is mandatory"},
		{"bad inventory", func(r *EnrollRequest) { r.Inventory = "<REQUEST>" }, "Inventory XML is not well formed"},
		{"no version", func(r *EnrollRequest) { r.Version = "" }, "Agent version missing"},
		{"no type", func(r *EnrollRequest) { r.MdmType = "" }, "MDM type missing"},
		{"unknown type", func(r *EnrollRequest) { r.MdmType = "windows" }, "unknown MDM type"},
		{"bad version", func(r *EnrollRequest) { r.Version = "two" }, "Bad agent version"},
		{"old version", func(r *EnrollRequest) { r.Version = "1.9" }, "The agent version is too low"},
		{"no permission flag", func(r *EnrollRequest) { r.HasSystemPermission = nil }, "The agent does not advertise its system permissions"},
		{"wrong email", func(r *EnrollRequest) { r.Email = "someone@example.com" }, "Wrong email address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEnrollFixture(t, config.Enrollment{Debug: true})
			inv := f.invite(t)
			req := request(inv.Token, "SN123")
			tc.mutate(&req)

			_, err := f.svc.Enroll(context.Background(), req)
			var ee *EnrollmentError
			require.ErrorAs(t, err, &ee)
			require.Equal(t, tc.want, ee.Public)
			n, err := f.r.Agents.CountByEntity(12)
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}
}

func TestEnrollAppleNeedsNoPermissionFlag(t *testing.T) {
	f := newEnrollFixture(t, config.Enrollment{})
	inv := f.invite(t)
	req := request(inv.Token, "SN123")
	req.MdmType, req.Version, req.HasSystemPermission = models.MdmTypeApple, "1.0.0", nil

	_, err := f.svc.Enroll(context.Background(), req)
	require.NoError(t, err)
}

func TestEnrollRespectsDeviceLimit(t *testing.T) {
	f := newEnrollFixture(t, config.Enrollment{Debug: true})
	require.NoError(t, f.r.Catalog.SetDeviceLimit(12, 1))
	first, second := f.invite(t), f.invite(t)
	_, err := f.svc.Enroll(context.Background(), request(first.Token, "SN1"))
	require.NoError(t, err)

	_, err = f.svc.Enroll(context.Background(), request(second.Token, "SN2"))
	var ee *EnrollmentError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "Too many devices", ee.Public)
}

func TestEnrollRejectsAlreadyEnrolledDevice(t *testing.T) {
	f := newEnrollFixture(t, config.Enrollment{Debug: true})
	first, second := f.invite(t), f.invite(t)
	res, err := f.svc.Enroll(context.Background(), request(first.Token, "SN1"))
	require.NoError(t, err)

	_, err = f.svc.Enroll(context.Background(), request(second.Token, "SN1"))
	var ee *EnrollmentError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "The device is already enrolled", ee.Public)

	// the first enrollment keeps its broker credentials
	auth := NewMosquittoAuthService(f.r.Mqtt, "backend", "secret")
	require.True(t, auth.Authenticate("SN1", res.MqttPassword))
}

func TestEnrollKeepsInvitationWithNoExpire(t *testing.T) {
	f := newEnrollFixture(t, config.Enrollment{NoExpire: true})
	inv := f.invite(t)
	_, err := f.svc.Enroll(context.Background(), request(inv.Token, "SN1"))
	require.NoError(t, err)

	stored, err := f.r.Invitations.FindByToken(inv.Token)
	require.NoError(t, err)
	require.Equal(t, models.InvitationPending, stored.Status)
}

func TestParseVersion(t *testing.T) {
	for _, v := range []string{"2", "2.0", "2.0.0", "2.1.3-beta.1", "2.0+build"} {
		_, err := parseVersion(v)
		require.NoError(t, err, v)
	}
	_, err := parseVersion("x.y")
	require.Error(t, err)
}
