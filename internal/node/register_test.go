package node

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomech/coretex/internal/api/apitest"
)

func TestRegister(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantToken string
		wantErr   string
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				apitest.JSON(w, http.StatusOK, map[string]any{"id": 7, "access_token": "abc"})
			},
			wantToken: "abc",
		},
		{
			name: "missing token",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				apitest.JSON(w, http.StatusOK, map[string]any{"id": 7})
			},
			wantErr: "missing node access token",
		},
		{
			name:    "rejected",
			handler: apitest.Status(http.StatusBadRequest),
			wantErr: "failed to configure node",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.New(t)
			srv.Handle(http.MethodPost, RegisterEndpoint, tt.handler)

			token, err := Register(context.Background(), srv.Client(), "worker-1")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)

			reqs := srv.Requests()
			require.Len(t, reqs, 1)
			var body map[string]any
			require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
			assert.Equal(t, "worker-1", body["machine_name"])
		})
	}
}
