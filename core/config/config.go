package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	PrivateKeyName    = "host_key"
	RecordingsDirName = "recordings"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs
	// configurationDir is the directory the configuration was loaded from.
	configurationDir string

	Prompt      string `json:"prompt"`
	Color       string `json:"color" validate:"oneof=auto always never"`
	HistoryFile string `json:"history_file"`
	EventLog    string `json:"event_log"`

	SSH SSH `json:"ssh"`
}

type SSH struct {
	Port                    int      `json:"port" validate:"gte=0,lte=65535"`
	HostKey                 string   `json:"host_key" validate:"required"`
	AccessKey               string   `json:"access_key"`
	Shell                   string   `json:"shell"`
	SessionRoot             string   `json:"session_root"`
	RecordingsDir           string   `json:"recordings_dir"`
	MaxOutputBytesPerSecond int64    `json:"max_output_bytes_per_second" validate:"gte=0"`
	IdleTimeout             Duration `json:"idle_timeout"`
}

// Duration is a time.Duration that's written as a string like "1m30s".
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration must not be negative: %q", s)
	}
	d.Duration = parsed
	return nil
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// Dir returns the directory the configuration was loaded from.
func (c *Configuration) Dir() string {
	return c.configurationDir
}

// Path resolves a path in the configuration relative to its directory.
func (c *Configuration) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.configurationDir, name)
}

// HistoryFilePath returns the absolute history file path or "" if there is
// none.
func (c *Configuration) HistoryFilePath() string {
	return c.Path(c.HistoryFile)
}

// PrivateKeyPem returns the bytes of the SSH host key.
func (c *Configuration) PrivateKeyPem() ([]byte, error) {
	return afero.ReadFile(c.fs(), c.Path(c.SSH.HostKey))
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.Path(c.EventLog), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.Path(c.EventLog), os.O_RDONLY, 0600)
}

// CreateRecording creates a session recording with the given name and
// returns it along with its path.
func (c *Configuration) CreateRecording(name string) (afero.File, string, error) {
	dir := c.Path(c.SSH.RecordingsDir)
	if err := c.fs().MkdirAll(dir, 0700); err != nil {
		return nil, "", err
	}
	toCreate := filepath.Join(dir, name)
	fd, err := c.fs().OpenFile(toCreate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	return fd, toCreate, err
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Configuration {
	out := defaultConfig()
	out.setDir(afero.NewOsFs(), dir)
	return out
}

func (c *Configuration) setDir(fs afero.Fs, dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	c.configurationDir = dir
	c.configFs = fs
}
