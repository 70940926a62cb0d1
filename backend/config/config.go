package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DB struct {
	Driver string // mysql | sqlite
	Host   string
	Port   int
	User   string
	Pass   string
	Name   string
	Path   string // sqlite file
}

type Redis struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type MQTT struct {
	Enabled  bool
	Broker   string // tcp://host:port used by the backend itself
	ClientID string
	Username string
	Password string
	QoS      byte
	Timeout  time.Duration
	// Values handed to agents on enrollment.
	ClientAddress string
	ClientPort    int
	ClientTLSPort int
	TLSForClients bool
	UseClientCert bool
}

type FCM struct {
	Enabled         bool
	CredentialsFile string
	ProjectID       string
}

type Enrollment struct {
	Debug              bool // return the real validation message to the device
	NoExpire           bool // keep invitations pending after use
	InvitationLifetime time.Duration
	SaveInventoryDir   string
	CertSignerURL      string
	DeviceLimit        int // default per entity, 0 is unlimited
}

type Query struct {
	Interval time.Duration
	Attempts int
}

type Log struct {
	Level string
	JSON  bool
}

type Config struct {
	Host       string
	Port       int
	DB         DB
	Redis      Redis
	MQTT       MQTT
	FCM        FCM
	Enrollment Enrollment
	Query      Query
	Log        Log
	JWT        struct {
		Secret string
		Issuer string
		ExpMin int
	}
	Admin struct {
		Username string
		Password string
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.host", "127.0.0.1")
	v.SetDefault("backend.port", 9400)
	v.SetDefault("backend.db.driver", "mysql")
	v.SetDefault("backend.db.host", "127.0.0.1")
	v.SetDefault("backend.db.port", 3306)
	v.SetDefault("backend.db.user", "root")
	v.SetDefault("backend.db.pass", "")
	v.SetDefault("backend.db.name", "flyvemdm")
	v.SetDefault("backend.db.path", "flyvemdm.db")
	v.SetDefault("backend.redis.enabled", false)
	v.SetDefault("backend.redis.addr", "127.0.0.1:6379")
	v.SetDefault("backend.redis.db", 0)
	v.SetDefault("backend.mqtt.enabled", true)
	v.SetDefault("backend.mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("backend.mqtt.client_id", "flyvemdm-backend")
	v.SetDefault("backend.mqtt.username", "flyvemdm-backend")
	v.SetDefault("backend.mqtt.qos", 1)
	v.SetDefault("backend.mqtt.timeout", "5s")
	v.SetDefault("backend.mqtt.client_address", "127.0.0.1")
	v.SetDefault("backend.mqtt.client_port", 1883)
	v.SetDefault("backend.mqtt.client_tls_port", 8883)
	v.SetDefault("backend.mqtt.tls_for_clients", false)
	v.SetDefault("backend.mqtt.use_client_cert", false)
	v.SetDefault("backend.fcm.enabled", false)
	v.SetDefault("backend.enrollment.debug", false)
	v.SetDefault("backend.enrollment.noexpire", false)
	v.SetDefault("backend.enrollment.invitation_lifetime", "168h")
	v.SetDefault("backend.enrollment.device_limit", 0)
	v.SetDefault("backend.query.interval", "200ms")
	v.SetDefault("backend.query.attempts", 50)
	v.SetDefault("backend.log.level", "info")
	v.SetDefault("backend.log.json", false)
	v.SetDefault("backend.jwt.issuer", "flyvemdm")
	v.SetDefault("backend.jwt.exp_min", 60)
	v.SetDefault("backend.admin.username", "admin")
	v.SetDefault("backend.admin.password", "admin123")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FLYVEMDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the yaml file at path. A missing file is not an error: defaults
// and FLYVEMDM_* environment variables are enough to boot.
func Load(path string) (*Config, *viper.Viper, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v), v, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Host: v.GetString("backend.host"),
		Port: v.GetInt("backend.port"),
		DB: DB{
			Driver: v.GetString("backend.db.driver"),
			Host:   v.GetString("backend.db.host"),
			Port:   v.GetInt("backend.db.port"),
			User:   v.GetString("backend.db.user"),
			Pass:   v.GetString("backend.db.pass"),
			Name:   v.GetString("backend.db.name"),
			Path:   v.GetString("backend.db.path"),
		},
		Redis: Redis{
			Enabled:  v.GetBool("backend.redis.enabled"),
			Addr:     v.GetString("backend.redis.addr"),
			Password: v.GetString("backend.redis.password"),
			DB:       v.GetInt("backend.redis.db"),
		},
		MQTT: MQTT{
			Enabled:       v.GetBool("backend.mqtt.enabled"),
			Broker:        v.GetString("backend.mqtt.broker"),
			ClientID:      v.GetString("backend.mqtt.client_id"),
			Username:      v.GetString("backend.mqtt.username"),
			Password:      v.GetString("backend.mqtt.password"),
			QoS:           byte(v.GetUint("backend.mqtt.qos")),
			Timeout:       v.GetDuration("backend.mqtt.timeout"),
			ClientAddress: v.GetString("backend.mqtt.client_address"),
			ClientPort:    v.GetInt("backend.mqtt.client_port"),
			ClientTLSPort: v.GetInt("backend.mqtt.client_tls_port"),
			TLSForClients: v.GetBool("backend.mqtt.tls_for_clients"),
			UseClientCert: v.GetBool("backend.mqtt.use_client_cert"),
		},
		FCM: FCM{
			Enabled:         v.GetBool("backend.fcm.enabled"),
			CredentialsFile: v.GetString("backend.fcm.credentials_file"),
			ProjectID:       v.GetString("backend.fcm.project_id"),
		},
		Enrollment: Enrollment{
			Debug:              v.GetBool("backend.enrollment.debug"),
			NoExpire:           v.GetBool("backend.enrollment.noexpire"),
			InvitationLifetime: v.GetDuration("backend.enrollment.invitation_lifetime"),
			SaveInventoryDir:   v.GetString("backend.enrollment.save_inventory_dir"),
			CertSignerURL:      v.GetString("backend.enrollment.cert_signer_url"),
			DeviceLimit:        v.GetInt("backend.enrollment.device_limit"),
		},
		Query: Query{
			Interval: v.GetDuration("backend.query.interval"),
			Attempts: v.GetInt("backend.query.attempts"),
		},
		Log: Log{
			Level: v.GetString("backend.log.level"),
			JSON:  v.GetBool("backend.log.json"),
		},
	}
	if cfg.MQTT.QoS > 2 {
		cfg.MQTT.QoS = 1
	}
	if cfg.Query.Interval <= 0 {
		cfg.Query.Interval = 200 * time.Millisecond
	}
	if cfg.Query.Attempts <= 0 {
		cfg.Query.Attempts = 50
	}
	cfg.JWT.Secret = v.GetString("backend.jwt.secret")
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-secret"
	}
	cfg.JWT.Issuer = v.GetString("backend.jwt.issuer")
	cfg.JWT.ExpMin = v.GetInt("backend.jwt.exp_min")
	if cfg.JWT.ExpMin <= 0 {
		cfg.JWT.ExpMin = 60
	}
	cfg.Admin.Username = v.GetString("backend.admin.username")
	cfg.Admin.Password = v.GetString("backend.admin.password")
	return cfg
}
