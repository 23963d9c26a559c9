package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("conflict")
)

type EnergyManagementClient interface {
	GetThresholds(ctx context.Context, productID, alertRuleID uint) (types.Thresholds, error)
	GetProductThresholds(ctx context.Context, productID uint) ([]types.Thresholds, error)
	GetDevices(ctx context.Context, organizationID uint) ([]types.Device, error)
	AddMeasurement(ctx context.Context, deviceID uint, measurement types.Measurement) (types.Measurement, error)
}

type energyMgmtClient struct {
	url        string
	httpClient http.Client
}

var tracer = otel.Tracer("iot-energy-mgmt-client")

func New(energyMgmtUrl string) EnergyManagementClient {
	return &energyMgmtClient{
		url: strings.TrimSuffix(energyMgmtUrl, "/"),
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *energyMgmtClient) GetThresholds(ctx context.Context, productID, alertRuleID uint) (types.Thresholds, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-thresholds")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	result := types.Thresholds{}
	err = c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v0/products/%d/alert-rules/%d/thresholds", productID, alertRuleID), nil, &result)
	return result, err
}

func (c *energyMgmtClient) GetProductThresholds(ctx context.Context, productID uint) ([]types.Thresholds, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-product-thresholds")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	result := types.Collection[types.Thresholds]{}
	err = c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v0/products/%d/thresholds", productID), nil, &result)
	return result.Data, err
}

func (c *energyMgmtClient) GetDevices(ctx context.Context, organizationID uint) ([]types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-devices")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	result := types.Collection[types.Device]{}
	err = c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v0/organizations/%d/devices", organizationID), nil, &result)
	return result.Data, err
}

func (c *energyMgmtClient) AddMeasurement(ctx context.Context, deviceID uint, measurement types.Measurement) (types.Measurement, error) {
	var err error
	ctx, span := tracer.Start(ctx, "add-measurement")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	b, err := json.Marshal(measurement)
	if err != nil {
		err = fmt.Errorf("failed to marshal measurement: %w", err)
		return types.Measurement{}, err
	}

	result := types.Measurement{}
	err = c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v0/devices/%d/measurements", deviceID), b, &result)
	return result, err
}

func (c *energyMgmtClient) do(ctx context.Context, method, path string, body []byte, result any) error {
	log := logging.GetFromContext(ctx)

	u, err := url.JoinPath(c.url, path)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Add("Accept", "application/json")
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("request failed")
		return statusError(resp.StatusCode, respBody)
	}

	err = json.Unmarshal(respBody, result)
	if err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	return nil
}

func statusError(status int, body []byte) error {
	response := types.ErrorResponse{}
	_ = json.Unmarshal(body, &response)

	msg := response.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}

	return fmt.Errorf("request failed with status code %d: %s", status, msg)
}
