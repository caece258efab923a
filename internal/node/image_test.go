package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepoAndTagFromImage(t *testing.T) {
	tests := []struct {
		image string
		repo  string
		tag   string
	}{
		{"coretexai/coretex-node:latest-gpu", "coretexai/coretex-node", "latest-gpu"},
		{"coretexai/coretex-node", "coretexai/coretex-node", "latest"},
		{"registry:5000/team/node:v2", "registry:5000/team/node", "v2"},
		{"registry:5000/team/node", "registry:5000/team/node", "latest"},
		{"ubuntu:22.04", "ubuntu", "22.04"},
	}

	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			assert.Equal(t, tt.repo, RepoFromImage(tt.image))
			assert.Equal(t, tt.tag, TagFromImage(tt.image))
		})
	}
}

func TestOfficialImage(t *testing.T) {
	assert.Equal(t, "coretexai/coretex-node:latest-gpu", OfficialImage("coretexai/coretex-node", true))
	assert.Equal(t, "coretexai/coretex-node:latest-cpu", OfficialImage("coretexai/coretex-node", false))
}
