package tracing

import (
	"context"
	"testing"

	"devconnect/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "devconnect", ServiceName(config.TracingConfig{}))
	assert.Equal(t, "api", ServiceName(config.TracingConfig{ServiceName: "api"}))
}
