package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/matryer/is"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

func TestSetup(t *testing.T) {
	r, is := setupTest(t)
	server := httptest.NewServer(r)
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/health", nil)

	is.Equal(resp.StatusCode, http.StatusNoContent)
}

func TestThatSeededThresholdsAreResolved(t *testing.T) {
	r, is := setupTest(t)
	server := httptest.NewServer(r)
	defer server.Close()

	resp, body := testRequest(is, server, http.MethodGet, "/api/v0/products/1/alert-rules/1/thresholds", nil)
	is.Equal(resp.StatusCode, http.StatusOK)

	th := types.Thresholds{}
	is.NoErr(json.Unmarshal([]byte(body), &th))
	is.Equal(10.0, *th.Min)
	is.Equal(50.0, *th.Max)

	resp, body = testRequest(is, server, http.MethodGet, "/api/v0/products/2/alert-rules/1/thresholds", nil)
	is.Equal(resp.StatusCode, http.StatusOK)

	is.NoErr(json.Unmarshal([]byte(body), &th))
	is.Equal(0.0, *th.Min)
	is.Equal(100.0, *th.Max)
}

func TestThatSeededDevicesAreListed(t *testing.T) {
	r, is := setupTest(t)
	server := httptest.NewServer(r)
	defer server.Close()

	resp, body := testRequest(is, server, http.MethodGet, "/api/v0/organizations/1/devices", nil)
	is.Equal(resp.StatusCode, http.StatusOK)

	devices := types.Collection[types.Device]{}
	is.NoErr(json.Unmarshal([]byte(body), &devices))
	is.Equal(uint64(3), devices.Count)
	is.Equal("Kitchen fridge", devices.Data[0].Name)
	is.Equal("Refrigeration", devices.Data[0].Category)
}

func TestThatGetUnknownDeviceReturns404(t *testing.T) {
	r, is := setupTest(t)
	server := httptest.NewServer(r)
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/api/v0/devices/4711", nil)

	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestInvalidCacheTTLFallsBackToNoExpiry(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	db, err := database.Open(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	flags := defaultFlags()
	flags[thresholdCacheTTL] = "soon"

	_, shutdown, err := initialize(ctx, flags, db, &application.Config{}, nil)
	is.NoErr(err)
	shutdown()
}

func TestSeedFailureIsReturned(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	db, err := database.Open(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	devices := strings.NewReader("organization;zone;name;sku;maxPowerW;serialNumber;status\nAcme;Kitchen;Fridge;NOPE;1;;\n")

	_, _, err = initialize(ctx, defaultFlags(), db, &application.Config{}, devices)
	is.True(err != nil)
}

func TestNewConnectorWithoutHostUsesInMemoryDatabase(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	db, err := database.Open(newConnector(ctx, defaultFlags()))
	is.NoErr(err)
	is.Equal("sqlite", db.Dialector.Name())
}

func setupTest(t *testing.T) (*chi.Mux, *is.I) {
	is := is.New(t)
	ctx := context.Background()

	cfgFile, err := os.Open("../../assets/config/config.yaml")
	is.NoErr(err)
	defer cfgFile.Close()

	cfg, err := application.LoadConfiguration(cfgFile)
	is.NoErr(err)

	devices, err := os.Open("../../assets/config/devices.csv")
	is.NoErr(err)
	defer devices.Close()

	db, err := database.Open(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	r, shutdown, err := initialize(ctx, defaultFlags(), db, cfg, devices)
	is.NoErr(err)
	t.Cleanup(shutdown)

	return r, is
}

func testRequest(is *is.I, ts *httptest.Server, method, path string, body io.Reader) (*http.Response, string) {
	req, _ := http.NewRequest(method, ts.URL+path, body)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	return resp, string(respBody)
}
