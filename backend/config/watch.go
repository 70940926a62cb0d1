package config

import (
	"errors"
	"io/fs"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

// Transports is the hot-reloadable part of the configuration: which
// notification transports are switched on right now.
type Transports struct {
	mqtt atomic.Bool
	fcm  atomic.Bool
}

func NewTransports(mqtt, fcm bool) *Transports {
	t := &Transports{}
	t.Set(mqtt, fcm)
	return t
}

func (t *Transports) Set(mqtt, fcm bool) {
	t.mqtt.Store(mqtt)
	t.fcm.Store(fcm)
}

func (t *Transports) MQTT() bool { return t.mqtt.Load() }
func (t *Transports) FCM() bool  { return t.fcm.Load() }

// Watch re-reads the file on every write and refreshes the transport flags.
// Other keys need a restart.
func Watch(v *viper.Viper, t *Transports, onChange func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg := fromViper(v)
		t.Set(cfg.MQTT.Enabled, cfg.FCM.Enabled)
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
