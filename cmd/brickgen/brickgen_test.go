package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserConfig(t *testing.T) {
	t.Setenv("BRICKGEN_CONFIG", "")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"equals form", []string{"generate", "--config=/tmp/a.yaml"}, "/tmp/a.yaml"},
		{"separate value", []string{"--config", "b.toml", "check"}, "b.toml"},
		{"dangling flag", []string{"dump", "--config"}, ""},
		{"absent", []string{"simulate"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userConfig(tt.args))
		})
	}
}

func TestUserConfigFromEnv(t *testing.T) {
	t.Setenv("BRICKGEN_CONFIG", "env.json")
	assert.Equal(t, "env.json", userConfig(nil))
}
