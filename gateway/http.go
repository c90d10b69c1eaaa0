package gateway

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const contentType = "application/msgpack"

// HTTPTransport posts the request payload to the asset service address
// and returns the response body as the reply.
type HTTPTransport struct {
	client *resty.Client
}

func NewHTTPTransport() *HTTPTransport {
	client := resty.New()
	client.SetHeader("Content-Type", contentType)
	client.SetHeader("Accept", contentType)
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, address string, payload []byte) ([]byte, error) {
	resp, err := t.client.R().SetContext(ctx).SetBody(payload).Post(address)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("asset service %s status %d", address, resp.StatusCode())
	}
	return resp.Body(), nil
}
