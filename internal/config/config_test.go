package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoDBFromURI(t *testing.T) {
	assert.Equal(t, "evms", mongoDBFromURI("mongodb://localhost:27017/evms"))
	assert.Equal(t, "evms", mongoDBFromURI("mongodb://localhost:27017/evms/extra"))
	assert.Equal(t, "", mongoDBFromURI("mongodb://localhost:27017"))
	assert.Equal(t, "", mongoDBFromURI("://bad"))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TZ", "UTC")
	t.Setenv("MONGO_URI", "mongodb://db:27017/center")
	t.Setenv("MONGO_DB", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "center", cfg.MongoDB)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "UTC", cfg.Timezone.String())
}

func TestLoadLists(t *testing.T) {
	t.Setenv("TZ", "UTC")
	t.Setenv("FRONTEND_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.FrontendOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoadInvalidTimezone(t *testing.T) {
	t.Setenv("TZ", "Not/AZone")
	_, err := Load()
	assert.Error(t, err)
}
