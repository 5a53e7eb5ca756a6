package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validViper() *viper.Viper {
	v := viper.New()
	v.Set("database.user", "resumeflow")
	v.Set("database.name", "resumeflow")
	v.Set("database.port", 5432)
	v.Set("worker.concurrency", 5)
	v.Set("worker.max_deliver", 3)
	v.Set("billing.minimum_balance", 5.0)
	v.Set("billing.conversion_rate", 10.0)
	v.Set("resume_source.max_attempts", 5)
	v.Set("resume_source.fetch_parallel", 5)
	return v
}

func TestNew_ValidConfig(t *testing.T) {
	v := validViper()
	v.Set("worker.task_timeout", "2m")

	cfg := New(v)

	assert.Equal(t, "resumeflow", cfg.Database.User)
	assert.Equal(t, 5, cfg.Worker.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Worker.TaskTimeout)
	assert.InEpsilon(t, 5.0, cfg.Billing.MinimumBalance, 1e-9)
}

func TestNew_InvalidConfigPanics(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*viper.Viper)
	}{
		{"missing database user", func(v *viper.Viper) { v.Set("database.user", "") }},
		{"missing database name", func(v *viper.Viper) { v.Set("database.name", "") }},
		{"bad database port", func(v *viper.Viper) { v.Set("database.port", 0) }},
		{"zero concurrency", func(v *viper.Viper) { v.Set("worker.concurrency", 0) }},
		{"zero max deliver", func(v *viper.Viper) { v.Set("worker.max_deliver", 0) }},
		{"negative minimum balance", func(v *viper.Viper) { v.Set("billing.minimum_balance", -1) }},
		{"zero conversion rate", func(v *viper.Viper) { v.Set("billing.conversion_rate", 0) }},
		{"zero fetch attempts", func(v *viper.Viper) { v.Set("resume_source.max_attempts", 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validViper()
			tt.mut(v)
			assert.Panics(t, func() { New(v) })
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "app",
		Password: "secret",
		Name:     "resumeflow",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=app password=secret dbname=resumeflow sslmode=disable",
		d.DSN())
}

func TestLoadPricingTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	content := []byte(`
default:
  conversion_rate: 10
assistants:
  resume-analyzer:
    conversion_rate: 8
  question-generator:
    conversion_rate: 12
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	table, err := LoadPricingTable(path, 10)
	require.NoError(t, err)

	assert.InEpsilon(t, 8.0, table.RateFor("resume-analyzer"), 1e-9)
	assert.InEpsilon(t, 12.0, table.RateFor("question-generator"), 1e-9)
	assert.InEpsilon(t, 10.0, table.RateFor("unknown-assistant"), 1e-9)
}

func TestLoadPricingTable_EmptyPathUsesFallback(t *testing.T) {
	table, err := LoadPricingTable("", 7.5)
	require.NoError(t, err)
	assert.InEpsilon(t, 7.5, table.RateFor("anything"), 1e-9)
}

func TestLoadPricingTable_RejectsNonPositiveRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	content := []byte(`
assistants:
  broken:
    conversion_rate: 0
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	_, err := LoadPricingTable(path, 10)
	assert.Error(t, err)
}
