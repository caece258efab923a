package node

import (
	"context"
	"fmt"

	"github.com/biomech/coretex/internal/api"
)

// RegisterEndpoint creates a node on the platform.
const RegisterEndpoint = "service"

// Register creates node name for the authenticated user's organization
// and returns its access token.
func Register(ctx context.Context, client *api.Client, name string) (string, error) {
	resp, err := client.Post(ctx, RegisterEndpoint, map[string]any{
		"machine_name": name,
	})
	if err != nil {
		return "", err
	}
	if err := api.Check(resp, "failed to configure node, please try again"); err != nil {
		return "", err
	}

	token, ok := resp.JSON()["access_token"].(string)
	if !ok || token == "" {
		return "", fmt.Errorf("invalid API response: missing node access token")
	}
	return token, nil
}
