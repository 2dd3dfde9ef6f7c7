package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logger     LoggerConfig
	Runner     RunnerConfig
	Docker     DockerConfig
	Kubernetes KubernetesConfig
	Storage    StorageConfig
	Workflows  WorkflowsConfig
	Webhook    WebhookConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type LoggerConfig struct {
	Level  string
	Format string
}

// RunnerConfig controls the in-process job dispatcher.
// Executor selects the step backend: "shell", "docker" or "kubernetes".
type RunnerConfig struct {
	Executor     string
	Workers      int
	PollInterval time.Duration
	StepTimeout  time.Duration
	WorkDir      string
}

type DockerConfig struct {
	Image   string
	WorkDir string
}

type KubernetesConfig struct {
	InCluster      bool
	KubeConfigPath string
	Namespace      string
	Image          string
}

type StorageConfig struct {
	LogDir          string
	ArtifactDir     string
	MaxArtifactSize int64
}

type WorkflowsConfig struct {
	Dir   string
	Watch bool
}

type WebhookConfig struct {
	Secret string
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "ci")
	v.SetDefault("DB_PASSWORD", "ci")
	v.SetDefault("DB_NAME", "ci_runner")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	v.SetDefault("RUNNER_EXECUTOR", "shell")
	v.SetDefault("RUNNER_WORKERS", 4)
	v.SetDefault("RUNNER_POLL_INTERVAL", "2s")
	v.SetDefault("RUNNER_STEP_TIMEOUT", "10m")
	v.SetDefault("RUNNER_WORKDIR", "")

	v.SetDefault("DOCKER_IMAGE", "golang:1.24")
	v.SetDefault("DOCKER_WORKDIR", "/workspace")

	v.SetDefault("K8S_IN_CLUSTER", false)
	v.SetDefault("K8S_KUBECONFIG", "")
	v.SetDefault("K8S_NAMESPACE", "ci-jobs")
	v.SetDefault("K8S_IMAGE", "golang:1.24")

	v.SetDefault("STORAGE_LOG_DIR", "./data/logs")
	v.SetDefault("STORAGE_ARTIFACT_DIR", "./data/artifacts")
	v.SetDefault("STORAGE_MAX_ARTIFACT_SIZE", 64<<20)

	v.SetDefault("WORKFLOWS_DIR", "")
	v.SetDefault("WORKFLOWS_WATCH", false)

	v.SetDefault("WEBHOOK_SECRET", "")

	// Env
	v.AutomaticEnv()

	connLifetime, err := time.ParseDuration(v.GetString("DB_CONN_MAX_LIFETIME"))
	if err != nil {
		connLifetime = 30 * time.Minute
	}
	pollInterval, err := time.ParseDuration(v.GetString("RUNNER_POLL_INTERVAL"))
	if err != nil {
		pollInterval = 2 * time.Second
	}
	stepTimeout, err := time.ParseDuration(v.GetString("RUNNER_STEP_TIMEOUT"))
	if err != nil {
		stepTimeout = 10 * time.Minute
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: connLifetime,
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Runner: RunnerConfig{
			Executor:     v.GetString("RUNNER_EXECUTOR"),
			Workers:      v.GetInt("RUNNER_WORKERS"),
			PollInterval: pollInterval,
			StepTimeout:  stepTimeout,
			WorkDir:      v.GetString("RUNNER_WORKDIR"),
		},
		Docker: DockerConfig{
			Image:   v.GetString("DOCKER_IMAGE"),
			WorkDir: v.GetString("DOCKER_WORKDIR"),
		},
		Kubernetes: KubernetesConfig{
			InCluster:      v.GetBool("K8S_IN_CLUSTER"),
			KubeConfigPath: v.GetString("K8S_KUBECONFIG"),
			Namespace:      v.GetString("K8S_NAMESPACE"),
			Image:          v.GetString("K8S_IMAGE"),
		},
		Storage: StorageConfig{
			LogDir:          v.GetString("STORAGE_LOG_DIR"),
			ArtifactDir:     v.GetString("STORAGE_ARTIFACT_DIR"),
			MaxArtifactSize: v.GetInt64("STORAGE_MAX_ARTIFACT_SIZE"),
		},
		Workflows: WorkflowsConfig{
			Dir:   v.GetString("WORKFLOWS_DIR"),
			Watch: v.GetBool("WORKFLOWS_WATCH"),
		},
		Webhook: WebhookConfig{
			Secret: v.GetString("WEBHOOK_SECRET"),
		},
	}

	return cfg, nil
}
