package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

// checkFields ensures the raw YAML has exactly the fields of the struct.
func checkFields(t *testing.T, rt reflect.Type, rawConfig map[interface{}]interface{}) {
	t.Helper()

	knownFields := make(map[string]bool)
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}
	}

	for k := range rawConfig {
		_, ok := knownFields[k.(string)]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestBuiltinConfig(t *testing.T) {
	rawConfig := make(map[interface{}]interface{})
	require.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	checkFields(t, reflect.TypeOf(Configuration{}), rawConfig)

	rawSSH, ok := rawConfig["ssh"].(map[interface{}]interface{})
	require.True(t, ok, "ssh isn't a map")
	checkFields(t, reflect.TypeOf(SSH{}), rawSSH)
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at runtime.
	cfg := defaultConfig()
	assert.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "$ ", cfg.Prompt)
	assert.Equal(t, ColorAuto, cfg.Color)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.Equal(t, time.Duration(0), cfg.SSH.IdleTimeout.Duration)
}

func TestLoadFs(t *testing.T) {
	cases := map[string]struct {
		config  string
		wantErr string
	}{
		"minimal": {
			config: "color: never\nssh:\n  host_key: key\n  idle_timeout: 1m30s\n",
		},
		"unknown-field": {
			config:  "colour: never\nssh:\n  host_key: key\n",
			wantErr: "unknown field",
		},
		"bad-color": {
			config:  "color: sometimes\nssh:\n  host_key: key\n",
			wantErr: "oneof",
		},
		"bad-port": {
			config:  "color: auto\nssh:\n  host_key: key\n  port: 70000\n",
			wantErr: "port",
		},
		"missing-host-key": {
			config:  "color: auto\n",
			wantErr: "host_key",
		},
		"bad-duration": {
			config:  "color: auto\nssh:\n  host_key: key\n  idle_timeout: 10\n",
			wantErr: "duration",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/cfg/config.yaml", []byte(tc.config), 0600))

			cfg, err := LoadFs(fs, "/cfg/config.yaml")
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "/cfg", cfg.Dir())
			assert.Equal(t, "/cfg/key", cfg.Path(cfg.SSH.HostKey))
			assert.Equal(t, 90*time.Second, cfg.SSH.IdleTimeout.Duration)
		})
	}
}

func TestConfiguration_Path(t *testing.T) {
	cfg := Default("/etc/tinysh")

	assert.Equal(t, "/etc/tinysh/history", cfg.Path("history"))
	assert.Equal(t, "/var/log/events.log", cfg.Path("/var/log/events.log"))
	assert.Equal(t, "", cfg.Path(""))
	assert.Equal(t, "", cfg.HistoryFilePath())
}
