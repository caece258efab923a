package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// DefaultPageSize is the page size FetchAll requests.
const DefaultPageSize = 100

// FetchByID loads endpoint/<id> into a new T. query is appended as URL
// parameters, e.g. {"include_sessions": 1}.
func FetchByID[T any](ctx context.Context, c *Client, endpoint string, id int, query map[string]any) (*T, error) {
	resp, err := c.Get(ctx, endpoint+"/"+strconv.Itoa(id), query)
	if err != nil {
		return nil, err
	}
	if resp.HasFailed() {
		return nil, NewRequestError(resp, fmt.Sprintf("failed to fetch %s %d", endpoint, id))
	}

	var obj T
	if err := resp.Decode(&obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// FetchAll pages through endpoint until a page shorter than pageSize is
// returned. Pages are numbered from 0. A pageSize below 1 uses
// DefaultPageSize.
func FetchAll[T any](ctx context.Context, c *Client, endpoint string, query map[string]any, pageSize int) ([]T, error) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	var all []T
	for page := 0; ; page++ {
		params := make(map[string]any, len(query)+2)
		for k, v := range query {
			params[k] = v
		}
		params["page"] = page
		params["page_size"] = pageSize

		resp, err := c.Get(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		if resp.HasFailed() {
			return nil, NewRequestError(resp, fmt.Sprintf("failed to fetch %s page %d", endpoint, page))
		}

		var batch []T
		if err := resp.Decode(&batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			return all, nil
		}
	}
}

// Create posts params to endpoint and decodes the created object.
func Create[T any](ctx context.Context, c *Client, endpoint string, params map[string]any) (*T, error) {
	resp, err := c.Post(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	if resp.HasFailed() {
		return nil, NewRequestError(resp, fmt.Sprintf("failed to create %s", endpoint))
	}

	var obj T
	if err := resp.Decode(&obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// Update sends a PUT with params to endpoint/<id>.
func Update(ctx context.Context, c *Client, endpoint string, id int, params map[string]any) error {
	resp, err := c.JSONRequest(ctx, http.MethodPut, endpoint+"/"+strconv.Itoa(id), params)
	if err != nil {
		return err
	}
	return Check(resp, fmt.Sprintf("failed to update %s %d", endpoint, id))
}
