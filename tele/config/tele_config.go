// Separate package is workaround to import cycles.
package tele_config

type Config struct { //nolint:maligned
	Enabled        bool   `hcl:"enable"`
	VmId           int    `hcl:"vm_id"`
	LogDebug       bool   `hcl:"log_debug"`
	KeepaliveSec   int    `hcl:"keepalive_sec"`
	PingTimeoutSec int    `hcl:"ping_timeout_sec"`
	MqttBroker     string `hcl:"mqtt_broker"`
	MqttLogDebug   bool   `hcl:"mqtt_log_debug"`
	MqttPassword   string `hcl:"mqtt_password"` // secret
	QueueSize      int    `hcl:"queue_size"`
	RetryMaxSec    int    `hcl:"retry_max_sec"`

	BuildVersion string `hcl:"-"`
}
