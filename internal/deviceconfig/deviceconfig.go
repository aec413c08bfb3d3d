// Package deviceconfig loads device construction settings from the
// environment (and an optional config file) using viper, merged over
// in-code defaults.
package deviceconfig

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
)

// Config holds every setting a Device needs at construction time that is
// not itself part of the wire protocol: timeouts, the pairing credential
// secret, and the realm/hardware identity used during pairing.
type Config struct {
	Realm             string
	HardwareID        string
	PairingBaseURL    string
	CredentialsSecret string

	HTTPTimeout           time.Duration
	MQTTConnectionTimeout time.Duration
	MQTTConnectedTimeout  time.Duration

	PersistenceEnabled bool
	StatusServerAddr   string
}

// Load reads ASTARTE_-prefixed environment variables (and, if present, a
// config file named astarte-device.yaml on the given search paths),
// applying defaults for every timeout so a bare environment still produces
// a usable Config. All three timeouts reject 0 as KindInvalidParam, per the
// "0 is rejected" timeout rule.
func Load(configPaths ...string) (Config, error) {
	const op = "deviceconfig.Load"

	v := viper.New()
	v.SetEnvPrefix("ASTARTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_timeout_ms", 5000)
	v.SetDefault("mqtt_connection_timeout_ms", 30000)
	v.SetDefault("mqtt_connected_timeout_ms", 60000)
	v.SetDefault("persistence_enabled", true)
	v.SetDefault("status_server_addr", "")

	v.SetConfigName("astarte-device")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	if len(configPaths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Config{}, asterr.New(asterr.KindInvalidParam, op, err)
			}
		}
	}

	cfg := Config{
		Realm:                 v.GetString("realm"),
		HardwareID:            v.GetString("hardware_id"),
		PairingBaseURL:        v.GetString("pairing_base_url"),
		CredentialsSecret:     v.GetString("credentials_secret"),
		HTTPTimeout:           time.Duration(v.GetInt64("http_timeout_ms")) * time.Millisecond,
		MQTTConnectionTimeout: time.Duration(v.GetInt64("mqtt_connection_timeout_ms")) * time.Millisecond,
		MQTTConnectedTimeout:  time.Duration(v.GetInt64("mqtt_connected_timeout_ms")) * time.Millisecond,
		PersistenceEnabled:    v.GetBool("persistence_enabled"),
		StatusServerAddr:      v.GetString("status_server_addr"),
	}

	if cfg.HTTPTimeout <= 0 || cfg.MQTTConnectionTimeout <= 0 || cfg.MQTTConnectedTimeout <= 0 {
		return Config{}, asterr.New(asterr.KindInvalidParam, op, nil)
	}
	return cfg, nil
}
