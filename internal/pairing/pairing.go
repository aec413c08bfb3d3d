// Package pairing implements the HTTPS client against the Astarte pairing
// API: device registration, CSR issuance/renewal, and broker URL
// resolution, using a context-aware net/http client and typed response
// structs.
package pairing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
)

// Client talks to one Astarte pairing API base URL for one realm.
type Client struct {
	httpClient *http.Client
	baseURL    string
	realm      string
}

// NewClient returns a pairing Client. timeout of 0 is the caller's bug, not
// this package's to default around — construction rejects it to match the
// "0 is InvalidParam" timeout rule applied elsewhere in the SDK.
func NewClient(baseURL, realm string, timeout time.Duration) (*Client, error) {
	const op = "pairing.NewClient"
	if timeout <= 0 {
		return nil, asterr.New(asterr.KindInvalidParam, op, nil)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		realm:      realm,
	}, nil
}

type registerRequest struct {
	Data struct {
		HWID string `json:"hw_id"`
	} `json:"data"`
}

type registerResponse struct {
	Data struct {
		CredentialsSecret string `json:"credentials_secret"`
	} `json:"data"`
}

// RegisterDevice calls POST /v1/<realm>/devices with hwID, expecting 201
// with a credentials_secret.
func (c *Client) RegisterDevice(ctx context.Context, agentAPIKey, hwID string) (string, error) {
	const op = "pairing.Client.RegisterDevice"
	var reqBody registerRequest
	reqBody.Data.HWID = hwID

	var resp registerResponse
	if err := c.doJSON(ctx, op, http.MethodPost, fmt.Sprintf("/v1/%s/devices", c.realm), agentAPIKey, reqBody, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.Data.CredentialsSecret, nil
}

type csrRequest struct {
	Data struct {
		CSR string `json:"csr"`
	} `json:"data"`
}

type csrResponse struct {
	Data struct {
		ClientCRT string `json:"client_crt"`
	} `json:"data"`
}

// RequestCertificate calls POST .../protocols/astarte_mqtt_v1/credentials
// with a PEM CSR, expecting 201 with a PEM client certificate.
func (c *Client) RequestCertificate(ctx context.Context, deviceID, credentialsSecret string, csrPEM []byte) ([]byte, error) {
	const op = "pairing.Client.RequestCertificate"
	var reqBody csrRequest
	reqBody.Data.CSR = string(csrPEM)

	var resp csrResponse
	path := fmt.Sprintf("/v1/%s/devices/%s/protocols/astarte_mqtt_v1/credentials", c.realm, deviceID)
	if err := c.doJSON(ctx, op, http.MethodPost, path, credentialsSecret, reqBody, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	return []byte(resp.Data.ClientCRT), nil
}

type verifyRequest struct {
	Data struct {
		ClientCRT string `json:"client_crt"`
	} `json:"data"`
}

type verifyResponse struct {
	Data struct {
		Valid bool `json:"valid"`
	} `json:"data"`
}

// VerifyClientCertificate calls POST .../credentials/verify with a
// previously issued PEM client certificate. A successful response with
// Valid false, or any HTTP/transport failure, is reported as
// KindClientCertInvalid so callers can uniformly trigger the renewal path
// (delete old credentials, re-issue, re-add) on either signal.
func (c *Client) VerifyClientCertificate(ctx context.Context, deviceID, credentialsSecret string, certPEM []byte) error {
	const op = "pairing.Client.VerifyClientCertificate"
	var reqBody verifyRequest
	reqBody.Data.ClientCRT = string(certPEM)

	var resp verifyResponse
	path := fmt.Sprintf("/v1/%s/devices/%s/protocols/astarte_mqtt_v1/credentials/verify", c.realm, deviceID)
	if err := c.doJSON(ctx, op, http.MethodPost, path, credentialsSecret, reqBody, http.StatusOK, &resp); err != nil {
		return asterr.New(asterr.KindClientCertInvalid, op, err)
	}
	if !resp.Data.Valid {
		return asterr.New(asterr.KindClientCertInvalid, op, nil)
	}
	return nil
}

type brokerResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// BrokerURL calls GET .../broker, expecting 200 with a mqtts:// URL.
func (c *Client) BrokerURL(ctx context.Context, deviceID, credentialsSecret string) (string, error) {
	const op = "pairing.Client.BrokerURL"
	var resp brokerResponse
	path := fmt.Sprintf("/v1/%s/devices/%s/protocols/astarte_mqtt_v1/broker", c.realm, deviceID)
	if err := c.doJSON(ctx, op, http.MethodGet, path, credentialsSecret, nil, http.StatusOK, &resp); err != nil {
		return "", err
	}
	if !strings.HasPrefix(resp.Data.URL, "mqtts://") {
		return "", asterr.New(asterr.KindHTTPRequest, op, fmt.Errorf("broker url %q missing mqtts:// prefix", resp.Data.URL))
	}
	return resp.Data.URL, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path, bearer string, body any, wantStatus int, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return asterr.New(asterr.KindInvalidParam, op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return asterr.New(asterr.KindHTTPRequest, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return asterr.New(asterr.KindHTTPRequest, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return asterr.New(asterr.KindHTTPBody, op, err)
	}
	if resp.StatusCode != wantStatus {
		return asterr.New(asterr.KindHTTPRequest, op, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return asterr.New(asterr.KindHTTPBody, op, err)
		}
	}
	return nil
}
