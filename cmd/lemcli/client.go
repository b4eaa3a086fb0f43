package main

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gridmarket/lem"
	"github.com/pkg/errors"
)

// restClient queries the REST API of a running market daemon.
type restClient struct {
	client *resty.Client
}

func newRestClient(host string) *restClient {
	host = strings.TrimSuffix(host, "/")
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}

	client := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)

	return &restClient{client: client}
}

// get fetches the given endpoint and decodes the JSON response into out.
func (c *restClient) get(ctx context.Context, endpoint string,
	params map[string]string, out interface{}) error {

	req := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		SetError(&lem.ErrorResponse{})

	resp, err := req.Get(endpoint)

	return checkResponse(resp, err)
}

// post sends the body to the given endpoint and decodes the JSON response
// into out.
func (c *restClient) post(ctx context.Context, endpoint string,
	params map[string]string, contentType string, body []byte,
	out interface{}) error {

	req := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		SetResult(out).
		SetError(&lem.ErrorResponse{})

	resp, err := req.Post(endpoint)

	return checkResponse(resp, err)
}

// checkResponse turns transport errors and non-2xx responses into an error.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Wrap(err, "unable to reach market daemon")
	}
	if resp.IsSuccess() {
		return nil
	}

	if apiErr, ok := resp.Error().(*lem.ErrorResponse); ok &&
		apiErr.Error.Code != "" {

		return errors.Errorf("%s: %s (%s)", resp.Status(),
			apiErr.Error.Message, apiErr.Error.Code)
	}

	return errors.Errorf("%s: %s", resp.Status(), resp.String())
}
