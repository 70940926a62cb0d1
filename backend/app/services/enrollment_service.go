package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/notify"
	"flyvemdm/backend/config"

	"github.com/coreos/go-semver/semver"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// PushTester checks that a push token is reachable before it is accepted.
type PushTester interface {
	TestConnection(ctx context.Context, token string) error
}

// TokenIssuer signs the API token handed to a new agent.
type TokenIssuer interface {
	Sign(userID uint, username, role string) (string, error)
}

var minAgentVersion = map[string]*semver.Version{
	models.MdmTypeAndroid: semver.New("2.0.0"),
	models.MdmTypeApple:   semver.New("1.0.0"),
}

type EnrollRequest struct {
	InvitationToken     string `json:"_invitation_token"`
	Email               string `json:"_email"`
	CSR                 string `json:"csr"`
	Firstname           string `json:"firstname"`
	Lastname            string `json:"lastname"`
	Version             string `json:"version"`
	MdmType             string `json:"type"`
	NotificationType    string `json:"notification_type"`
	NotificationToken   string `json:"notification_token"`
	Inventory           string `json:"inventory"` // base64 encoded
	HasSystemPermission *bool  `json:"has_system_permission"`
}

// Enrollment is what a device needs to start working after enrolling.
type Enrollment struct {
	Agent        *models.Agent
	APIToken     string
	Topic        string
	MqttUser     string
	MqttPassword string
	Broker       string
	Port         int
	TLSPort      int
	TLS          bool
	Certificate  string
}

type EnrollmentDeps struct {
	Transports notify.Transports
	Pusher     PushTester
	Importer   InventoryImporter
	Tokens     TokenIssuer
	Certs      CertSigner
	Access     *MqttAccessService
	Agents     *AgentService
}

type EnrollmentService struct {
	db   *gorm.DB
	r    Repos
	mqtt config.MQTT
	cfg  config.Enrollment
	deps EnrollmentDeps
	log  zerolog.Logger
	mu   sync.Mutex
	now  func() time.Time
}

func NewEnrollmentService(db *gorm.DB, r Repos, mqttCfg config.MQTT, cfg config.Enrollment, deps EnrollmentDeps, log zerolog.Logger) *EnrollmentService {
	if deps.Importer == nil {
		deps.Importer = XMLImporter{}
	}
	return &EnrollmentService{db: db, r: r, mqtt: mqttCfg, cfg: cfg, deps: deps, log: log, now: time.Now}
}

// fail records the rejection in the invitation log and returns it.
func (s *EnrollmentService) fail(inv *models.Invitation, err error, format string, args ...any) *EnrollmentError {
	e := enrollFailure(s.cfg.Debug, err, format, args...)
	if inv != nil {
		if lerr := s.r.Invitations.Log(inv.ID, e.Message); lerr != nil {
			s.log.Error().Err(lerr).Uint("invitation", inv.ID).Msg("cannot write invitation log")
		}
	}
	s.log.Warn().Err(err).Str("reason", e.Message).Msg("enrollment rejected")
	return e
}

// Enroll turns an invitation and a device inventory into an enrolled agent.
// The checks run in a fixed order and the first failure stops the
// enrollment; the invitation stays pending in that case.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*Enrollment, error) {
	inv, err := s.r.Invitations.FindByToken(req.InvitationToken)
	if err != nil || req.InvitationToken == "" {
		return nil, s.fail(nil, err, "Invitation token invalid")
	}
	if inv.Status != models.InvitationPending {
		return nil, s.fail(inv, ErrInvitationConsumed, "Invitation is not pending")
	}
	if inv.ExpirationDate == nil {
		return nil, s.fail(inv, nil, "Expiration date of the invitation is not set")
	}
	if !s.now().Before(*inv.ExpirationDate) {
		return nil, s.fail(inv, ErrInvitationConsumed, "Invitation token expired")
	}

	if e := s.checkNotification(inv, req); e != nil {
		return nil, e
	}
	if req.NotificationType == models.NotificationFCM {
		if err := s.deps.Pusher.TestConnection(ctx, req.NotificationToken); err != nil {
			return nil, s.fail(inv, err, "Invalid FCM credentials")
		}
	}

	raw := decodeInventory(req.Inventory)
	if len(raw) == 0 {
		return nil, s.fail(inv, ErrInventoryMissing, "Device inventory XML is mandatory")
	}
	savedAt := s.saveInventory(req.InvitationToken, raw)
	inventory, err := s.deps.Importer.Import(raw)
	if err != nil {
		return nil, s.fail(inv, err, "Inventory XML is not well formed")
	}
	if inventory.Serial == "" {
		return nil, s.fail(inv, nil, "Cannot create the device")
	}

	if e := s.checkAgent(inv, req); e != nil {
		return nil, e
	}

	owner, err := s.r.Users.FindByID(inv.UserID)
	if err != nil || !strings.EqualFold(strings.TrimSpace(owner.Email), strings.TrimSpace(req.Email)) {
		return nil, s.fail(inv, err, "Wrong email address")
	}

	if e := s.checkQuota(inv); e != nil {
		return nil, e
	}

	var certificate string
	if s.mqtt.TLSForClients && s.mqtt.UseClientCert {
		if s.deps.Certs == nil {
			return nil, s.fail(inv, nil, "Failed to sign the certificate")
		}
		certificate, err = s.deps.Certs.Sign(ctx, req.CSR)
		if err != nil {
			return nil, s.fail(inv, err, "Failed to sign the certificate\n %s", err)
		}
	}

	if d, err := s.r.Devices.FindBySerial(inv.EntityID, inventory.Serial); err == nil {
		if _, err := s.r.Agents.FindByDeviceID(d.ID); err == nil {
			return nil, s.fail(inv, nil, "The device is already enrolled")
		}
	}

	topic := fmt.Sprintf("%d/agent/%s", inv.EntityID, inventory.Serial)
	password, err := s.deps.Access.Setup(inventory.Serial, topic)
	if err != nil {
		return nil, s.fail(inv, err, "Cannot create the MQTT account of the device")
	}

	agent, agentUser, err := s.persist(inv, owner, req, inventory, certificate, savedAt)
	if err != nil {
		if rerr := s.deps.Access.Revoke(inventory.Serial); rerr != nil {
			s.log.Error().Err(rerr).Str("serial", inventory.Serial).Msg("cannot revoke mqtt account")
		}
		var ee *EnrollmentError
		if errors.As(err, &ee) {
			return nil, ee
		}
		return nil, s.fail(inv, err, "Cannot enroll the device")
	}

	token, err := s.deps.Tokens.Sign(agentUser.ID, agentUser.Username, models.RoleAgent)
	if err != nil {
		return nil, fmt.Errorf("sign agent token: %w", err)
	}

	// Stale retained state from a previous enrollment of the same serial is
	// cleared before the agent is pointed at its fleet.
	if err := s.deps.Agents.CleanupTopics(ctx, agent); err != nil {
		s.log.Warn().Err(err).Uint("agent", agent.ID).Msg("topic cleanup incomplete")
	}
	if err := s.deps.Agents.Subscribe(ctx, agent); err != nil {
		s.log.Warn().Err(err).Uint("agent", agent.ID).Msg("subscribe not delivered")
	}

	s.log.Info().Uint("agent", agent.ID).Str("topic", agent.Topic()).Uint("invitation", inv.ID).Msg("device enrolled")
	return &Enrollment{
		Agent:        agent,
		APIToken:     token,
		Topic:        agent.Topic(),
		MqttUser:     inventory.Serial,
		MqttPassword: password,
		Broker:       s.mqtt.ClientAddress,
		Port:         s.mqtt.ClientPort,
		TLSPort:      s.mqtt.ClientTLSPort,
		TLS:          s.mqtt.TLSForClients,
		Certificate:  certificate,
	}, nil
}

func (s *EnrollmentService) checkNotification(inv *models.Invitation, req EnrollRequest) *EnrollmentError {
	switch req.NotificationType {
	case models.NotificationMQTT:
		if !s.deps.Transports.MQTT() {
			return s.fail(inv, nil, "%s service is not available", "MQTT")
		}
		return nil
	case models.NotificationFCM:
		if !s.deps.Transports.FCM() || s.deps.Pusher == nil {
			return s.fail(inv, nil, "%s service is not available", "FCM")
		}
		if req.NotificationToken == "" {
			return s.fail(inv, nil, "Notification token is missing")
		}
		return nil
	}
	return s.fail(inv, nil, "Notification settings are invalid")
}

func (s *EnrollmentService) checkAgent(inv *models.Invitation, req EnrollRequest) *EnrollmentError {
	if req.Version == "" {
		return s.fail(inv, nil, "Agent version missing")
	}
	if req.MdmType == "" {
		return s.fail(inv, nil, "MDM type missing")
	}
	floor, ok := minAgentVersion[req.MdmType]
	if !ok {
		return s.fail(inv, nil, "unknown MDM type")
	}
	v, err := parseVersion(req.Version)
	if err != nil {
		return s.fail(inv, err, "Bad agent version")
	}
	if v.LessThan(*floor) {
		return s.fail(inv, nil, "The agent version is too low")
	}
	if req.MdmType == models.MdmTypeAndroid && req.HasSystemPermission == nil {
		return s.fail(inv, nil, "The agent does not advertise its system permissions")
	}
	return nil
}

// parseVersion accepts "2", "2.1" and full semantic versions.
func parseVersion(s string) (*semver.Version, error) {
	core, rest := s, ""
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		core, rest = s[:i], s[i:]
	}
	for strings.Count(core, ".") < 2 {
		core += ".0"
	}
	return semver.NewVersion(core + rest)
}

func (s *EnrollmentService) checkQuota(inv *models.Invitation) *EnrollmentError {
	limit, err := s.r.Catalog.DeviceLimit(inv.EntityID)
	if err != nil {
		return s.fail(inv, err, "Failed to read configuration of the entity")
	}
	if limit == 0 {
		limit = s.cfg.DeviceLimit
	}
	if limit <= 0 {
		return nil
	}
	count, err := s.r.Agents.CountByEntity(inv.EntityID)
	if err != nil {
		return s.fail(inv, err, "Failed to read configuration of the entity")
	}
	if count >= int64(limit) {
		return s.fail(inv, nil, "Too many devices")
	}
	return nil
}

// saveInventory keeps a copy of the upload when a directory is configured.
func (s *EnrollmentService) saveInventory(token string, raw []byte) string {
	if s.cfg.SaveInventoryDir == "" {
		return ""
	}
	name := fmt.Sprintf("debug_%s_%s.xml", token, uuid.NewString())
	path := filepath.Join(s.cfg.SaveInventoryDir, name)
	if err := os.MkdirAll(s.cfg.SaveInventoryDir, 0o755); err != nil {
		s.log.Warn().Err(err).Msg("cannot create inventory directory")
		return ""
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("cannot save inventory")
		return ""
	}
	return path
}

func (s *EnrollmentService) persist(inv *models.Invitation, owner *models.User, req EnrollRequest, inventory *Inventory, certificate, savedAt string) (*models.Agent, *models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agentID uint
	var agentUser models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		r := NewRepos(tx)
		locked, err := r.Invitations.LockByToken(inv.Token)
		if err != nil {
			return err
		}
		if locked.Status != models.InvitationPending {
			return enrollFailure(s.cfg.Debug, ErrInvitationConsumed, "Invitation is not pending")
		}
		if !s.cfg.NoExpire {
			if err := r.Invitations.MarkDone(locked.ID); err != nil {
				return err
			}
		}

		device := &models.Device{
			EntityID:          inv.EntityID,
			Serial:            inventory.Serial,
			UUID:              inventory.UUID,
			Name:              inventory.Name,
			UserID:            owner.ID,
			OSName:            inventory.OSName,
			OSVersion:         inventory.OSVersion,
			Model:             inventory.Model,
			InventoryDeviceID: inventory.DeviceID,
		}
		if err := r.Devices.Upsert(device); err != nil {
			return err
		}
		if _, err := r.Agents.FindByDeviceID(device.ID); err == nil {
			return enrollFailure(s.cfg.Debug, nil, "The device is already enrolled")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// agents authenticate with their API token only
		secret, err := generateSecret(24)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		agentUser = models.User{
			Username:     "flyvemdm-" + uuid.NewString(),
			Realname:     inventory.Serial,
			PasswordHash: string(hash),
			Role:         models.RoleAgent,
			EntityID:     inv.EntityID,
		}
		if err := r.Users.Create(&agentUser); err != nil {
			return err
		}

		fleet, err := r.Fleets.Default(inv.EntityID)
		if err != nil {
			return errors.Join(ErrNoDefaultFleet, err)
		}

		if req.Firstname != "" || req.Lastname != "" {
			owner.Firstname, owner.Realname = req.Firstname, req.Lastname
			if err := r.Users.Save(owner); err != nil {
				return err
			}
		}

		name := inventory.Name
		if name == "" {
			name = inventory.Serial
		}
		agent := &models.Agent{
			Name:                name,
			EntityID:            inv.EntityID,
			DeviceID:            device.ID,
			FleetID:             fleet.ID,
			UserID:              agentUser.ID,
			InvitationID:        inv.ID,
			EnrollStatus:        models.EnrollStatusEnrolled,
			Version:             req.Version,
			MdmType:             req.MdmType,
			HasSystemPermission: req.HasSystemPermission != nil && *req.HasSystemPermission,
			NotificationType:    req.NotificationType,
			NotificationToken:   req.NotificationToken,
			Certificate:         certificate,
		}
		if err := r.Agents.Create(agent); err != nil {
			return err
		}
		agentID = agent.ID

		snap := &models.InventorySnapshot{DeviceID: device.ID, Checksum: inventory.Checksum(), Raw: string(inventory.Raw)}
		if err := r.Telemetry.AddInventory(snap); err != nil {
			return err
		}
		if savedAt != "" {
			doc := &models.Document{AgentID: agent.ID, Name: filepath.Base(savedAt), Path: savedAt}
			if err := r.Catalog.AddDocument(doc); err != nil {
				return err
			}
		}
		return r.Invitations.Log(inv.ID, "Enrollment succeeded")
	})
	if err != nil {
		var ee *EnrollmentError
		if errors.As(err, &ee) {
			if lerr := s.r.Invitations.Log(inv.ID, ee.Message); lerr != nil {
				s.log.Error().Err(lerr).Uint("invitation", inv.ID).Msg("cannot write invitation log")
			}
		}
		return nil, nil, err
	}
	agent, err := s.r.Agents.FindByID(agentID)
	if err != nil {
		return nil, nil, err
	}
	return agent, &agentUser, nil
}
