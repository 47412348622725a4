package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Fortemi/fortemi-sub011/internal/config"
)

func testObservabilityConfig() *config.ObservabilityConfig {
	return &config.ObservabilityConfig{
		EnableTelemetry:       true,
		ServiceName:           "matric-core-test",
		ServiceVersion:        "0.0.0-test",
		OTLPEndpoint:          "localhost:4317",
		OTLPProtocol:          "grpc",
		OTLPInsecure:          true,
		TraceSamplingRatio:    1.0,
		MetricsEnabled:        true,
		MetricsExportInterval: 1,
		ShutdownTimeout:       1,
	}
}

func TestNewResourceCarriesServiceAttributes(t *testing.T) {
	cfg := testObservabilityConfig()
	res := newResource(cfg)

	var sawName, sawVersion bool
	for _, attr := range res.Attributes() {
		switch string(attr.Key) {
		case "service.name":
			assert.Equal(t, cfg.ServiceName, attr.Value.AsString())
			sawName = true
		case "service.version":
			assert.Equal(t, cfg.ServiceVersion, attr.Value.AsString())
			sawVersion = true
		}
	}
	assert.True(t, sawName, "service.name attribute not found")
	assert.True(t, sawVersion, "service.version attribute not found")
}

func TestStripScheme(t *testing.T) {
	cases := map[string]string{
		"http://localhost:4317":  "localhost:4317",
		"https://otel.internal:4318": "otel.internal:4318",
		"localhost:4317":         "localhost:4317",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripScheme(in))
	}
}
