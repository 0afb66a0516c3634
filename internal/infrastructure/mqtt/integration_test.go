package mqtt

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/pinforge-core/internal/infrastructure/config"
)

// brokerConfig returns a config for the broker named by
// PINFORGE_TEST_MQTT_BROKER (host:port), skipping the test when unset.
func brokerConfig(t *testing.T) config.MQTTConfig {
	t.Helper()
	addr := os.Getenv("PINFORGE_TEST_MQTT_BROKER")
	if addr == "" {
		t.Skip("PINFORGE_TEST_MQTT_BROKER not set, skipping broker test")
	}
	host, portStr, ok := strings.Cut(addr, ":")
	port, err := strconv.Atoi(portStr)
	if !ok || err != nil {
		t.Fatalf("PINFORGE_TEST_MQTT_BROKER = %q, want host:port", addr)
	}
	cfg := testConfig()
	cfg.Broker.Host = host
	cfg.Broker.Port = port
	cfg.Broker.ClientID = "pinforge-test-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	return cfg
}

func TestIntegration_AllocationRoundtrip(t *testing.T) {
	cfg := brokerConfig(t)

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	r, _ := newTestResponder(t)
	r.publisher = client
	if err := r.Start(client); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	client.subMu.RLock()
	_, tracked := client.subscriptions[Topics{}.AllAllocateRequests()]
	client.subMu.RUnlock()
	if !tracked {
		t.Fatal("responder subscription not tracked")
	}

	responses := make(chan []byte, 1)
	requestID := cfg.Broker.ClientID
	err = client.Subscribe(Topics{}.AllocateResponse(requestID), 1, func(_ string, payload []byte) error {
		responses <- payload
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	req := []byte(`{"spec":{"mcu_id":"stm32f103c8","sensor_ids":["bme280"]}}`)
	if err := client.Publish(Topics{}.AllocateRequest(requestID), req, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-responses:
		var resp AllocateResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			t.Fatalf("response is not JSON: %v", err)
		}
		if !resp.OK || resp.RequestID != requestID {
			t.Errorf("response = %+v", resp)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no allocation response within 5s")
	}
}
