package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/pinforge-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "pinforge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestBuildClientOptions(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		opts := buildClientOptions(testConfig())
		if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
			t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
		}
		if opts.ClientID != "pinforge-test" {
			t.Errorf("ClientID = %q, want pinforge-test", opts.ClientID)
		}
		if opts.Username != "" {
			t.Errorf("Username = %q, want empty", opts.Username)
		}
		if !opts.CleanSession || !opts.AutoReconnect {
			t.Errorf("CleanSession=%v AutoReconnect=%v, want both true", opts.CleanSession, opts.AutoReconnect)
		}
		if opts.MaxReconnectInterval != 5*time.Second {
			t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
		}
		if opts.TLSConfig != nil {
			t.Error("TLSConfig set without broker.tls")
		}
	})

	t.Run("tls and auth", func(t *testing.T) {
		cfg := testConfig()
		cfg.Broker.TLS = true
		cfg.Broker.Port = 8883
		cfg.Auth = config.MQTTAuthConfig{Username: "pinforge", Password: "secret"}

		opts := buildClientOptions(cfg)
		if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
			t.Errorf("Server = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
		}
		if opts.Username != "pinforge" || opts.Password != "secret" {
			t.Errorf("credentials = %q/%q, want pinforge/secret", opts.Username, opts.Password)
		}
		if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
			t.Errorf("TLSConfig = %+v, want MinVersion TLS1.2", opts.TLSConfig)
		}
	})
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "pinforge-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Errorf("WillEnabled=%v WillRetained=%v, want both true", opts.WillEnabled, opts.WillRetained)
	}
	if opts.WillTopic != "pinforge/system/status" {
		t.Errorf("WillTopic = %q, want pinforge/system/status", opts.WillTopic)
	}
	if opts.WillQos != lwtQoS {
		t.Errorf("WillQos = %d, want %d", opts.WillQos, lwtQoS)
	}

	var msg StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("WillPayload is not JSON: %v", err)
	}
	if msg.Status != StatusOffline || msg.Reason != ReasonUnexpectedDisconnect || msg.ClientID != "pinforge-test" {
		t.Errorf("will = %+v", msg)
	}
}

func TestStatusPayload(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 500, time.UTC)
	got := string(statusPayload(StatusOnline, "pinforge-01", "", at))
	want := `{"status":"online","client_id":"pinforge-01","timestamp":"2026-10-01T12:00:00Z"}`
	if got != want {
		t.Errorf("statusPayload() = %s, want %s", got, want)
	}
}
