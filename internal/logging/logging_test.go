package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		configLvl LogLevel
		logLvl    LogLevel
		shouldLog bool
	}{
		{"debug logs debug", DebugLevel, DebugLevel, true},
		{"info skips debug", InfoLevel, DebugLevel, false},
		{"info logs warn", InfoLevel, WarnLevel, true},
		{"warn skips info", WarnLevel, InfoLevel, false},
		{"error skips warn", ErrorLevel, WarnLevel, false},
		{"error logs error", ErrorLevel, ErrorLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLogger(Config{Level: tt.configLvl, Output: buf})

			logger.log(tt.logLvl, "test message", nil)

			hasOutput := buf.Len() > 0
			if hasOutput != tt.shouldLog {
				t.Errorf("shouldLog = %v, but hasOutput = %v", tt.shouldLog, hasOutput)
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{
		Level:  InfoLevel,
		Format: JSONFormat,
		Output: buf,
	})

	logger.Info("test message", map[string]interface{}{
		"count": 42,
		"name":  "test",
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["message"] != "test message" {
		t.Errorf("message = %v", entry["message"])
	}
	fields, ok := entry["fields"].(map[string]interface{})
	if !ok {
		t.Fatal("fields should be a map")
	}
	if fields["count"] != float64(42) {
		t.Errorf("fields.count = %v, want 42", fields["count"])
	}
}

func TestHumanFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{
		Level:  InfoLevel,
		Format: HumanFormat,
		Output: buf,
	})

	logger.Info("human readable", map[string]interface{}{"key": "value"})

	output := buf.String()
	if !strings.Contains(output, "[info]") || !strings.Contains(output, "human readable") {
		t.Errorf("output missing level or message: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("output missing field: %s", output)
	}
}

func TestParseEnvSpec(t *testing.T) {
	tests := []struct {
		spec        string
		wantBase    LogLevel
		wantModules map[string]LogLevel
	}{
		{"", InfoLevel, map[string]LogLevel{}},
		{"debug", DebugLevel, map[string]LogLevel{}},
		{"storage=debug", InfoLevel, map[string]LogLevel{"storage": DebugLevel}},
		{"warn,scanner=debug,storage=error", WarnLevel,
			map[string]LogLevel{"scanner": DebugLevel, "storage": ErrorLevel}},
		{"storage=nonsense", InfoLevel, map[string]LogLevel{}},
	}

	for _, tt := range tests {
		base, modules := ParseEnvSpec(tt.spec)
		if base != tt.wantBase {
			t.Errorf("ParseEnvSpec(%q) base = %s, want %s", tt.spec, base, tt.wantBase)
		}
		if len(modules) != len(tt.wantModules) {
			t.Errorf("ParseEnvSpec(%q) modules = %v, want %v", tt.spec, modules, tt.wantModules)
			continue
		}
		for name, level := range tt.wantModules {
			if modules[name] != level {
				t.Errorf("ParseEnvSpec(%q)[%s] = %s, want %s", tt.spec, name, modules[name], level)
			}
		}
	}
}

func TestModuleLevelOverride(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{
		Level:        WarnLevel,
		ModuleLevels: map[string]LogLevel{"storage": DebugLevel},
		Output:       buf,
	})

	// The base logger filters info out...
	logger.Info("base info", nil)
	if buf.Len() != 0 {
		t.Error("base level did not filter info")
	}

	// ...but the overridden module lets debug through.
	logger.Module("storage").Debug("storage debug", nil)
	if !strings.Contains(buf.String(), "storage debug") {
		t.Error("module override did not apply")
	}

	// Other modules keep the base threshold.
	buf.Reset()
	logger.Module("scanner").Info("scanner info", nil)
	if buf.Len() != 0 {
		t.Error("unrelated module inherited the override")
	}
}
