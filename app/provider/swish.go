package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength is the longest payee message the provider accepts.
const MaxMessageLength = 50

const (
	paymentRequestTokenHeader = "PaymentRequestToken"
	// CallbackIdentifierHeader carries the per-payment identifier on callbacks.
	CallbackIdentifierHeader  = "callbackIdentifier"
	productionHost            = "cpc.getswish.net"
)

var ErrClientCertificateRequired = errors.New("swish client certificate is required for the production host")

type SwishConfig struct {
	BaseURL     string
	CertPath    string
	KeyPath     string
	CAPath      string
	PayeeAlias  string
	HTTPTimeout time.Duration
}

type SwishProvider struct {
	cfg    SwishConfig
	client *http.Client
}

// NewSwishProvider builds a client that authenticates with the configured
// client certificate and trusts only the configured CA bundle.
func NewSwishProvider(cfg SwishConfig) (*SwishProvider, error) {
	if !HasClientCertificate(cfg) && IsProductionHost(cfg.BaseURL) {
		return nil, ErrClientCertificateRequired
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if HasClientCertificate(cfg) || strings.TrimSpace(cfg.KeyPath) != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load swish client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if strings.TrimSpace(cfg.CAPath) != "" {
		pem, err := os.ReadFile(cfg.CAPath)
		if err != nil {
			return nil, fmt.Errorf("read swish ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("swish ca bundle contains no certificates")
		}
		tlsConfig.RootCAs = pool
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	return newSwishProviderWithClient(cfg, &http.Client{Transport: transport}), nil
}

// HasClientCertificate reports whether a client certificate is configured.
// Without one the provider cannot authenticate the merchant.
func HasClientCertificate(cfg SwishConfig) bool {
	return strings.TrimSpace(cfg.CertPath) != ""
}

func IsProductionHost(baseURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), productionHost)
}

func newSwishProviderWithClient(cfg SwishConfig, client *http.Client) *SwishProvider {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	client.Timeout = cfg.HTTPTimeout

	return &SwishProvider{cfg: cfg, client: client}
}

// NewInstructionID returns a collision-resistant id in the provider's format:
// 32 upper-case hex characters. It doubles as the local payment id.
func NewInstructionID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// NewCallbackIdentifier returns a random secret the provider echoes back in
// the CallbackIdentifierHeader of each callback.
func NewCallbackIdentifier() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (p *SwishProvider) RequestPayment(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	if p.cfg.BaseURL == "" {
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, Err: errors.New("swish base url is not configured")}
	}
	if strings.TrimSpace(p.cfg.PayeeAlias) == "" {
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, Err: errors.New("swish payee alias is not configured")}
	}

	instructionID := NewInstructionID()
	body := map[string]string{
		"payeeAlias":  p.cfg.PayeeAlias,
		"amount":      input.Amount.StringFixed(2),
		"currency":    strings.ToUpper(input.Currency),
		"message":     truncate(input.Message, MaxMessageLength),
		"callbackUrl": input.CallbackURL,
	}
	if input.CallbackIdentifier != "" {
		body["callbackIdentifier"] = input.CallbackIdentifier
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.HTTPTimeout)
	defer cancel()

	endpoint := p.cfg.BaseURL + "/api/v2/paymentrequests/" + url.PathEscape(instructionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, rejectedError(resp.StatusCode, respBody)
	}

	return &CreateOutput{
		ID:    instructionID,
		Token: strings.TrimSpace(resp.Header.Get(paymentRequestTokenHeader)),
	}, nil
}

func (p *SwishProvider) GetPaymentRequest(ctx context.Context, id string) (*PaymentRequest, error) {
	if p.cfg.BaseURL == "" {
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, Err: errors.New("swish base url is not configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.HTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/v1/paymentrequests/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, rejectedError(resp.StatusCode, body)
	}

	var result PaymentRequest
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &GatewayError{Kind: ErrGatewayRejected, StatusCode: resp.StatusCode, Err: err}
	}
	if strings.TrimSpace(result.ID) == "" {
		result.ID = id
	}
	return &result, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GatewayError{Kind: ErrGatewayTimeout, Err: err}
	}
	return &GatewayError{Kind: ErrGatewayUnavailable, Err: err}
}

func rejectedError(statusCode int, body []byte) error {
	var items []struct {
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	gwErr := &GatewayError{Kind: ErrGatewayRejected, StatusCode: statusCode}
	if len(body) > 0 && json.Unmarshal(body, &items) == nil {
		for _, item := range items {
			if code := strings.TrimSpace(item.ErrorCode); code != "" {
				gwErr.Codes = append(gwErr.Codes, code)
			}
		}
	}
	return gwErr
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
