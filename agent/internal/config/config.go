// Package config loads the settings of the simulated device.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	BackendURL      string
	InvitationToken string
	Email           string
	MdmType         string
	Version         string

	Serial    string
	Name      string
	Model     string
	OSName    string
	OSVersion string

	// Broker overrides the address handed out at enrollment, e.g. tcp://localhost:1883.
	Broker      string
	QoS         byte
	DBPath      string
	LogPath     string
	LogLevel    string
	GPS         bool
	Latitude    float64
	Longitude   float64
	RebootDelay time.Duration
}

// Load reads path (missing is fine) and FLYVE_AGENT_* variables.
func Load(path string) (AppConfig, error) {
	dataDir := filepath.Join(os.TempDir(), "flyve-agent")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("flyve_agent")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("agent.backend_url", "http://127.0.0.1:8080")
	v.SetDefault("agent.mdm_type", "android")
	v.SetDefault("agent.version", "2.1.0")
	v.SetDefault("agent.device.name", "simulated-device")
	v.SetDefault("agent.device.model", "Simulator")
	v.SetDefault("agent.device.os_name", "Android")
	v.SetDefault("agent.device.os_version", "13")
	v.SetDefault("agent.qos", 1)
	v.SetDefault("agent.db_path", filepath.Join(dataDir, "agent.db"))
	v.SetDefault("agent.log_level", "info")
	v.SetDefault("agent.gps.enabled", true)
	v.SetDefault("agent.gps.latitude", 48.8566)
	v.SetDefault("agent.gps.longitude", 2.3522)
	v.SetDefault("agent.reboot_delay", 2*time.Second)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return AppConfig{}, err
		}
	}

	serial := v.GetString("agent.device.serial")
	if serial == "" {
		host, _ := os.Hostname()
		serial = "SIM-" + strings.ToUpper(host)
	}
	return AppConfig{
		BackendURL:      v.GetString("agent.backend_url"),
		InvitationToken: v.GetString("agent.invitation_token"),
		Email:           v.GetString("agent.email"),
		MdmType:         v.GetString("agent.mdm_type"),
		Version:         v.GetString("agent.version"),
		Serial:          serial,
		Name:            v.GetString("agent.device.name"),
		Model:           v.GetString("agent.device.model"),
		OSName:          v.GetString("agent.device.os_name"),
		OSVersion:       v.GetString("agent.device.os_version"),
		Broker:          v.GetString("agent.broker"),
		QoS:             byte(v.GetUint("agent.qos")),
		DBPath:          v.GetString("agent.db_path"),
		LogPath:         v.GetString("agent.log_path"),
		LogLevel:        v.GetString("agent.log_level"),
		GPS:             v.GetBool("agent.gps.enabled"),
		Latitude:        v.GetFloat64("agent.gps.latitude"),
		Longitude:       v.GetFloat64("agent.gps.longitude"),
		RebootDelay:     v.GetDuration("agent.reboot_delay"),
	}, nil
}
