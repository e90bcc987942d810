package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed programs.yaml
var programsYAML []byte

type Config struct {
	Store       StoreConfig
	Recognition RecognitionConfig
	Credentials CredentialsConfig
	Web         WebConfig
	Camera      CameraConfig
	Academics   AcademicsConfig
}

// StoreConfig holds the on-disk layout. Defaults match the historical
// directory structure so existing data files keep working.
type StoreConfig struct {
	RegistryPath   string // student registry CSV
	SamplesDir     string // captured face samples
	AttendanceDir  string // per-date attendance files
	ArtifactPath   string // trained model artifact
	AdminFile      string // admin credential file
	CredentialsDir string // per-student password hash files
}

type RecognitionConfig struct {
	Threshold  float64 // maximum accepted prediction distance
	MaxSamples int     // samples captured per enrollment
	Dedup      string  // "session" or "student"
}

// Dedup policy values. The session-wide cap reproduces the original
// behavior; the per-student key is the corrected variant.
const (
	DedupSession = "session"
	DedupStudent = "student"
)

type CredentialsConfig struct {
	Salt string
}

type WebConfig struct {
	Host      string
	Port      int
	JWTSecret string
}

type CameraConfig struct {
	Dir string // frame directory for the default file-backed device
}

// AcademicsConfig lists the enumerated values accepted for student records.
type AcademicsConfig struct {
	Departments []string `yaml:"departments"`
	Branches    []string `yaml:"branches"`
	Programs    []string `yaml:"programs"`
}

// envStr reads an environment variable with a default.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var academics AcademicsConfig
	if err := yaml.Unmarshal(programsYAML, &academics); err != nil {
		// Embedded file, cannot fail in practice.
		panic("failed to unmarshal embedded programs.yaml: " + err.Error())
	}

	return &Config{
		Store: StoreConfig{
			RegistryPath:   envStr("REGISTRY_PATH", "StudentDetails/StudentDetails.csv"),
			SamplesDir:     envStr("SAMPLES_DIR", "TrainingImage"),
			AttendanceDir:  envStr("ATTENDANCE_DIR", "Attendance"),
			ArtifactPath:   envStr("ARTIFACT_PATH", "TrainingImageLabel/Trainner.yml"),
			AdminFile:      envStr("ADMIN_FILE", "AdminDetails/admin_info.txt"),
			CredentialsDir: envStr("CREDENTIALS_DIR", "StudentDetails"),
		},
		Recognition: RecognitionConfig{
			Threshold:  envFloat("RECOGNITION_THRESHOLD", 50),
			MaxSamples: envInt("ENROLLMENT_MAX_SAMPLES", 50),
			Dedup:      envStr("ATTENDANCE_DEDUP", DedupSession),
		},
		Credentials: CredentialsConfig{
			// Historical fallback kept for compatibility with existing
			// credential files. Not production grade; override it.
			Salt: envStr("CREDENTIALS_SALT", "face_attendance_system_salt"),
		},
		Web: WebConfig{
			Host:      envStr("WEB_HOST", "127.0.0.1"),
			Port:      envInt("WEB_PORT", 8080),
			JWTSecret: os.Getenv("WEB_JWT_SECRET"),
		},
		Camera: CameraConfig{
			Dir: os.Getenv("CAMERA_DIR"),
		},
		Academics: academics,
	}
}
