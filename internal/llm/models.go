package llm

import (
	"context"
	"errors"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ListModels returns the ids of the models the proxy serves, sorted.
// credential authenticates against the proxy itself.
func (c *Client) ListModels(ctx context.Context, credential string) ([]string, error) {
	opts := []option.RequestOption{
		option.WithBaseURL(c.baseURL + "/v1/"),
		option.WithHTTPClient(c.http),
		option.WithMaxRetries(0),
	}
	if credential != "" {
		opts = append(opts, option.WithAPIKey(credential))
	}
	client := openai.NewClient(opts...)

	var ids []string
	iter := client.Models.ListAutoPaging(ctx)
	for iter.Next() {
		ids = append(ids, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, c.classifyListError(ctx, err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *Client) classifyListError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return canceledError("", c.baseURL, ctx.Err())
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		e := statusError(apiErr.StatusCode, "", c.baseURL, func() string { return apiErr.RawJSON() })
		e.Err = err
		return e
	}
	return &Error{Kind: KindConnectivity, URL: c.baseURL, Err: err}
}
