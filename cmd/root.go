package cmd

import (
	"fmt"
	"os"
	"strings"

	"resumeflow/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "resumeflow",
	Short: "Asynchronous résumé analysis for HR teams",
	Long: `Resumeflow runs LLM-backed résumé-to-vacancy analysis as an
asynchronous pipeline with per-organization token billing.

The system supports:
- Batch submission of résumés against a vacancy
- Résumé text resolution from an external HR API
- Durable task dispatch over NATS JetStream
- Atomic usage accounting against a PostgreSQL token ledger
- Live per-session progress over Redis Pub/Sub and websockets`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	// Bind flags to viper
	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-level flag: %v\n", err)
	}
	if err := viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding log-format flag: %v\n", err)
	}
}

func initConfig() {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Environment variables
	v.SetEnvPrefix("RESUMEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found; use defaults and environment
	}

	cfg = config.New(v)
}

func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "30s")

	// Worker defaults
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_group", "analysis-workers")
	v.SetDefault("worker.task_timeout", "5m")
	v.SetDefault("worker.max_deliver", 5)
	v.SetDefault("worker.ack_wait", "6m")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "resumeflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Redis defaults
	v.SetDefault("redis.url", "redis://localhost:6379/0")

	// LLM defaults
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.assistant_id", "resume-analysis")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)

	// Résumé source defaults
	v.SetDefault("resume_source.timeout", "30s")
	v.SetDefault("resume_source.max_attempts", 5)
	v.SetDefault("resume_source.fetch_parallel", 5)
	v.SetDefault("resume_source.requests_per_sec", 5)
	v.SetDefault("resume_source.cache_size", 512)
	v.SetDefault("resume_source.cache_ttl", "15m")

	// Billing defaults
	v.SetDefault("billing.minimum_balance", 5)
	v.SetDefault("billing.conversion_rate", 200)
	v.SetDefault("billing.trial_tokens", 25)
	v.SetDefault("billing.trial_residual", 1)
	v.SetDefault("billing.pricing_file", "./configs/pricing.yaml")

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}
