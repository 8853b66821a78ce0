// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ayusman/retailsight/internal/tracking"
)

// Config holds the runtime settings of a retailsight run.
type Config struct {
	Input           string
	OutputDir       string
	SnapshotDir     string
	FrameSkip       int // process frames where count % FrameSkip == 0
	CaptureInterval time.Duration
	EntranceRatio   float64

	HandHistory       int
	HandAssignment    string
	HandMatchDistance float64
	MaxIdleFrames     int // 0 keeps identities for the whole session

	Detector      string // dnn, sidecar or mock
	ModelPath     string
	ModelConfig   string
	MinConfidence float64
	ScriptDir     string

	RolesFile  string
	DBPath     string
	WebhookURL string
	HookPath   string
	HooksDir   string
	ListenAddr string
}

// Load reads envFile (ignored when missing) and then the environment.
// Variables already set in the environment take precedence over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	return &Config{
		Input:             getEnv("INPUT", filepath.Join("test_videos", "besttest.mp4")),
		OutputDir:         getEnv("OUTPUT_DIR", "output"),
		SnapshotDir:       getEnv("SNAPSHOT_DIR", "analyze_frames"),
		FrameSkip:         getEnvAsInt("FRAME_SKIP", 3),
		CaptureInterval:   getEnvAsDuration("CAPTURE_INTERVAL", 3*time.Second),
		EntranceRatio:     getEnvAsFloat("ENTRANCE_RATIO", tracking.DefaultEntranceRatio),
		HandHistory:       getEnvAsInt("HAND_HISTORY", tracking.DefaultHandHistory),
		HandAssignment:    getEnv("HAND_ASSIGNMENT", "sequential"),
		HandMatchDistance: getEnvAsFloat("HAND_MATCH_DISTANCE", 80),
		MaxIdleFrames:     getEnvAsInt("MAX_IDLE_FRAMES", 0),
		Detector:          getEnv("DETECTOR", "dnn"),
		ModelPath:         getEnv("MODEL_PATH", filepath.Join("models", "frozen_inference_graph.pb")),
		ModelConfig:       getEnv("MODEL_CONFIG", filepath.Join("models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		MinConfidence:     getEnvAsFloat("MIN_CONFIDENCE", 0.5),
		ScriptDir:         getEnv("SCRIPT_DIR", ""),
		RolesFile:         getEnv("ROLES_FILE", ""),
		DBPath:            getEnv("DB_PATH", defaultDBPath()),
		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		HookPath:          getEnv("HOOK_PATH", ""),
		HooksDir:          getEnv("HOOKS_DIR", ""),
		ListenAddr:        getEnv("LISTEN_ADDR", ""),
	}, nil
}

// Validate checks ranges that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New("input is required")
	}
	if c.FrameSkip < 1 {
		return fmt.Errorf("frame skip must be at least 1, got %d", c.FrameSkip)
	}
	if c.EntranceRatio <= 0 || c.EntranceRatio >= 1 {
		return fmt.Errorf("entrance ratio must be in (0, 1), got %v", c.EntranceRatio)
	}
	if c.HandHistory < 1 {
		return fmt.Errorf("hand history must be at least 1, got %d", c.HandHistory)
	}
	if _, err := tracking.ParseHandAssignment(c.HandAssignment); err != nil {
		return err
	}
	switch c.Detector {
	case "dnn", "sidecar", "mock":
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	return nil
}

// Roles returns the role map from RolesFile, or the default map when unset.
func (c *Config) Roles() (tracking.RoleMap, error) {
	if c.RolesFile == "" {
		return tracking.DefaultRoleMap(), nil
	}
	return LoadRoleMap(c.RolesFile)
}

// LoadRoleMap reads a JSON object mapping class ids to role names, for
// example {"0": "customer", "60": "table"}.
func LoadRoleMap(path string) (tracking.RoleMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role map: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse role map %s: %w", path, err)
	}

	roles := make(tracking.RoleMap, len(raw))
	for key, name := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("role map %s: class id %q is not an integer", path, key)
		}
		role, err := tracking.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("role map %s: class %d: %w", path, id, err)
		}
		roles[id] = role
	}
	return roles, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".retailsight", "retailsight.db")
	}
	return filepath.Join(home, ".retailsight", "retailsight.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1500ms") or plain seconds ("3").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
