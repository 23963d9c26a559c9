package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/catalog"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/devicemanagement"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/events"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/thresholds"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	catalogrepo "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/catalog"
	dm "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/devicemanagement"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/measurements"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/router"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

func TestHealth(t *testing.T) {
	is, ts := testSetup(t)

	resp, _ := testRequest(ts, http.MethodGet, "/health", "")
	is.Equal(http.StatusNoContent, resp.StatusCode)
}

func TestCreateAndListCategories(t *testing.T) {
	is, ts := testSetup(t)

	resp, body := testRequest(ts, http.MethodPost, "/api/v0/categories", `{"name":"Refrigeration"}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	category := types.Category{}
	is.NoErr(json.Unmarshal(body, &category))
	is.Equal("Refrigeration", category.Name)
	is.Equal("ACTIVE", category.Status)

	resp, _ = testRequest(ts, http.MethodPost, "/api/v0/categories", `{"name":"Refrigeration"}`)
	is.Equal(http.StatusConflict, resp.StatusCode)

	resp, body = testRequest(ts, http.MethodGet, "/api/v0/categories", "")
	is.Equal(http.StatusOK, resp.StatusCode)

	categories := types.Collection[types.Category]{}
	is.NoErr(json.Unmarshal(body, &categories))
	is.Equal(uint64(1), categories.Count)
}

func TestCreateProductWithMissingFieldsIsBadRequest(t *testing.T) {
	is, ts := testSetup(t)

	resp, body := testRequest(ts, http.MethodPost, "/api/v0/products", `{"name":"Fridge"}`)
	is.Equal(http.StatusBadRequest, resp.StatusCode)

	response := types.ErrorResponse{}
	is.NoErr(json.Unmarshal(body, &response))
	is.Equal(2, len(response.Fields))
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	is, ts := testSetup(t)

	resp, _ := testRequest(ts, http.MethodPost, "/api/v0/categories", `{"name":`)
	is.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidIDIsBadRequest(t *testing.T) {
	is, ts := testSetup(t)

	resp, _ := testRequest(ts, http.MethodGet, "/api/v0/devices/abc", "")
	is.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownDeviceIsNotFound(t *testing.T) {
	is, ts := testSetup(t)

	resp, _ := testRequest(ts, http.MethodGet, "/api/v0/devices/4711", "")
	is.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestThresholds(t *testing.T) {
	is, ts := testSetup(t)

	productID, ruleID := addProductAndRule(is, ts)

	th := getThresholds(is, ts, "/api/v0/products/1/alert-rules/1/thresholds")
	is.Equal(10.0, *th.Min)
	is.Equal(50.0, *th.Max)

	resp, _ := testRequest(ts, http.MethodPost, "/api/v0/alert-rules/"+ruleID+"/products/"+productID, `{"minThreshold":15,"maxThreshold":45}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	th = getThresholds(is, ts, "/api/v0/products/1/alert-rules/1/thresholds")
	is.Equal(15.0, *th.Min)
	is.Equal(45.0, *th.Max)

	resp, _ = testRequest(ts, http.MethodPut, "/api/v0/alert-rules/"+ruleID+"/products/"+productID, `{"minThreshold":15}`)
	is.Equal(http.StatusOK, resp.StatusCode)

	th = getThresholds(is, ts, "/api/v0/products/1/alert-rules/1/thresholds")
	is.Equal(10.0, *th.Min)
	is.Equal(50.0, *th.Max)

	resp, body := testRequest(ts, http.MethodGet, "/api/v0/products/1/thresholds", "")
	is.Equal(http.StatusOK, resp.StatusCode)

	all := types.Collection[types.Thresholds]{}
	is.NoErr(json.Unmarshal(body, &all))
	is.Equal(uint64(1), all.Count)

	resp, _ = testRequest(ts, http.MethodDelete, "/api/v0/alert-rules/"+ruleID+"/products/"+productID, "")
	is.Equal(http.StatusNoContent, resp.StatusCode)

	resp, _ = testRequest(ts, http.MethodGet, "/api/v0/products/2/alert-rules/1/thresholds", "")
	is.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestInvertedOverrideIsConflict(t *testing.T) {
	is, ts := testSetup(t)

	productID, ruleID := addProductAndRule(is, ts)

	resp, _ := testRequest(ts, http.MethodPost, "/api/v0/alert-rules/"+ruleID+"/products/"+productID, `{"minThreshold":45,"maxThreshold":15}`)
	is.Equal(http.StatusConflict, resp.StatusCode)
}

func TestDeleteCategoryInUseIsConflict(t *testing.T) {
	is, ts := testSetup(t)

	addProductAndRule(is, ts)

	resp, _ := testRequest(ts, http.MethodDelete, "/api/v0/categories/1", "")
	is.Equal(http.StatusConflict, resp.StatusCode)

	resp, _ = testRequest(ts, http.MethodDelete, "/api/v0/categories/1?soft=true", "")
	is.Equal(http.StatusNoContent, resp.StatusCode)

	resp, body := testRequest(ts, http.MethodGet, "/api/v0/categories", "")
	is.Equal(http.StatusOK, resp.StatusCode)

	categories := types.Collection[types.Category]{}
	is.NoErr(json.Unmarshal(body, &categories))
	is.Equal(uint64(0), categories.Count)

	_, body = testRequest(ts, http.MethodGet, "/api/v0/categories?includeDeleted=true", "")
	is.NoErr(json.Unmarshal(body, &categories))
	is.Equal(uint64(1), categories.Count)
}

func TestDevicesMeasurementsAndPanel(t *testing.T) {
	is, ts := testSetup(t)

	addProductAndRule(is, ts)

	resp, _ := testRequest(ts, http.MethodPost, "/api/v0/organizations", `{"name":"Acme"}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	resp, _ = testRequest(ts, http.MethodPost, "/api/v0/organizations/1/zones", `{"name":"Kitchen"}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	resp, body := testRequest(ts, http.MethodPost, "/api/v0/organizations/1/devices", `{"name":"F1","zoneID":1,"productID":1}`)
	is.Equal(http.StatusBadRequest, resp.StatusCode)

	response := types.ErrorResponse{}
	is.NoErr(json.Unmarshal(body, &response))
	is.Equal("name", response.Fields[0].Field)

	resp, _ = testRequest(ts, http.MethodPost, "/api/v0/organizations/1/devices", `{"name":"Fridge 1","zoneID":1,"productID":1,"maxPowerW":150}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	resp, _ = testRequest(ts, http.MethodPost, "/api/v0/devices/1/measurements", `{"energyKWh":120.5}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	resp, _ = testRequest(ts, http.MethodPost, "/api/v0/devices/1/alert-events", `{"alertRuleID":1,"message":"over limit"}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	resp, body = testRequest(ts, http.MethodGet, "/api/v0/devices/1/alert-events", "")
	is.Equal(http.StatusOK, resp.StatusCode)

	alertEvents := types.Collection[types.AlertEvent]{}
	is.NoErr(json.Unmarshal(body, &alertEvents))
	is.Equal("High Temp", alertEvents.Data[0].AlertRule)

	resp, body = testRequest(ts, http.MethodGet, "/api/v0/organizations/1/panel", "")
	is.Equal(http.StatusOK, resp.StatusCode)

	panel := types.Panel{}
	is.NoErr(json.Unmarshal(body, &panel))
	is.Equal(1, panel.CriticalCount)
	is.Equal(120.5, *panel.Devices[0].LatestKWh)

	resp, _ = testRequest(ts, http.MethodDelete, "/api/v0/zones/1", "")
	is.Equal(http.StatusConflict, resp.StatusCode)

	resp, _ = testRequest(ts, http.MethodDelete, "/api/v0/devices/1", "")
	is.Equal(http.StatusNoContent, resp.StatusCode)

	resp, body = testRequest(ts, http.MethodGet, "/api/v0/organizations/1/devices", "")
	is.Equal(http.StatusOK, resp.StatusCode)

	devices := types.Collection[types.Device]{}
	is.NoErr(json.Unmarshal(body, &devices))
	is.Equal(uint64(0), devices.Count)
}

func testSetup(t *testing.T) (*is.I, *httptest.Server) {
	is := is.New(t)
	ctx := context.Background()

	db, err := database.Open(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	c := catalogrepo.NewCatalogRepository(db)
	catalogSvc := catalog.New(c, thresholds.NewResolver(c, 0))

	sender := &events.SenderMock{
		SendFunc: func(ctx context.Context, event types.AlertEventRecorded) error {
			return nil
		},
	}

	svc := devicemanagement.New(dm.NewDeviceRepository(db), measurements.NewMeasurementRepository(db), c, sender, application.PanelConfig{})

	r := RegisterHandlers(ctx, router.New("iot-energy-mgmt-test"), catalogSvc, svc)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	return is, ts
}

func addProductAndRule(is *is.I, ts *httptest.Server) (string, string) {
	resp, _ := testRequest(ts, http.MethodPost, "/api/v0/categories", `{"name":"Refrigeration"}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	resp, _ = testRequest(ts, http.MethodPost, "/api/v0/products", `{"name":"Fridge","categoryID":1,"sku":"FR-100"}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	resp, _ = testRequest(ts, http.MethodPost, "/api/v0/alert-rules", `{"name":"High Temp","severity":"HIGH","defaultMinThreshold":10,"defaultMaxThreshold":50}`)
	is.Equal(http.StatusCreated, resp.StatusCode)

	return "1", "1"
}

func getThresholds(is *is.I, ts *httptest.Server, path string) types.Thresholds {
	resp, body := testRequest(ts, http.MethodGet, path, "")
	is.Equal(http.StatusOK, resp.StatusCode)

	th := types.Thresholds{}
	is.NoErr(json.Unmarshal(body, &th))
	return th
}

func testRequest(ts *httptest.Server, method, path string, body string) (*http.Response, []byte) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, _ := http.NewRequest(method, ts.URL+path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	return resp, respBody
}
