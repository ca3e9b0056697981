package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logistics-backend/db/models"
	"logistics-backend/middleware"
	"logistics-backend/token"
	"logistics-backend/utils"
	"logistics-backend/vehicles/controllers"
	"logistics-backend/vehicles/repositories"
	"logistics-backend/vehicles/routes"
	"logistics-backend/vehicles/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

const testSymmetricKey = "12345678901234567890123456789012"

type fakeBatchRepo struct {
	repositories.BulkUploadRepository

	batches       map[string]*models.VehicleBulkUploadBatch
	created       []*models.VehicleBulkUploadBatch
	statusUpdates []models.BulkUploadStatus
	getCalls      int
	lastFilter    repositories.BatchErrorFilter
	errorsFn      func() ([]models.VehicleBulkUploadRecord, int64, error)
}

func (r *fakeBatchRepo) CreateBatch(_ context.Context, batch *models.VehicleBulkUploadBatch) error {
	r.created = append(r.created, batch)
	r.batches[batch.BatchID] = batch
	return nil
}

func (r *fakeBatchRepo) GetBatch(_ context.Context, batchID string) (*models.VehicleBulkUploadBatch, error) {
	r.getCalls++
	b, ok := r.batches[batchID]
	if !ok {
		return nil, repositories.ErrBatchNotFound
	}
	return b, nil
}

func (r *fakeBatchRepo) UpdateBatchStatus(_ context.Context, batchID string, status models.BulkUploadStatus, stage models.BulkUploadStage, msg *string) error {
	r.statusUpdates = append(r.statusUpdates, status)
	if b, ok := r.batches[batchID]; ok {
		b.Status, b.Stage, b.ErrorMessage = status, stage, msg
	}
	return nil
}

func (r *fakeBatchRepo) GetBatchErrors(_ context.Context, _ string, filter repositories.BatchErrorFilter) ([]models.VehicleBulkUploadRecord, int64, error) {
	r.lastFilter = filter
	if r.errorsFn != nil {
		return r.errorsFn()
	}
	return nil, 0, nil
}

type fakeStatusCache struct {
	entries map[string]*models.VehicleBulkUploadBatch
	sets    int
}

func (c *fakeStatusCache) Get(_ context.Context, batchID string) (*models.VehicleBulkUploadBatch, bool, error) {
	b, ok := c.entries[batchID]
	return b, ok, nil
}

func (c *fakeStatusCache) Set(_ context.Context, batch *models.VehicleBulkUploadBatch) error {
	c.sets++
	c.entries[batch.BatchID] = batch
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: services.BulkUploadQueue}, nil
}

type testServer struct {
	app       *fiber.App
	repo      *fakeBatchRepo
	cache     *fakeStatusCache
	enqueuer  *fakeEnqueuer
	uploadDir string
	reportDir string
	bearer    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	maker, err := token.NewPasetoMaker(testSymmetricKey)
	require.NoError(t, err)
	accessToken, err := maker.CreateToken("ops@example.com", time.Minute)
	require.NoError(t, err)

	s := &testServer{
		repo:      &fakeBatchRepo{batches: make(map[string]*models.VehicleBulkUploadBatch)},
		cache:     &fakeStatusCache{entries: make(map[string]*models.VehicleBulkUploadBatch)},
		enqueuer:  &fakeEnqueuer{},
		uploadDir: filepath.Join(t.TempDir(), "uploads"),
		reportDir: filepath.Join(t.TempDir(), "reports"),
		bearer:    "Bearer " + accessToken,
	}

	s.app = fiber.New(fiber.Config{BodyLimit: routes.UploadBodyLimit})
	routes.VehicleRouterInit(s.app, &middleware.AppContext{PasetoMaker: maker, Ctx: context.Background()}, &controllers.VehicleController{
		BatchRepo:   s.repo,
		StatusCache: s.cache,
		Uploads:     utils.NewLocalFileStorage(s.uploadDir),
		Reports:     utils.NewLocalFileStorage(s.reportDir),
		Enqueuer:    s.enqueuer,
	})
	return s
}

func (s *testServer) do(t *testing.T, req *http.Request, authenticated bool) (*http.Response, map[string]interface{}) {
	t.Helper()
	if authenticated {
		req.Header.Set(fiber.HeaderAuthorization, s.bearer)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

func uploadRequest(t *testing.T, fileName string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/vehicles/bulk-upload", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func (s *testServer) addBatch(status models.BulkUploadStatus) *models.VehicleBulkUploadBatch {
	b := &models.VehicleBulkUploadBatch{
		BatchID:      uuid.New().String(),
		UploadedBy:   "ops@example.com",
		FileName:     "fleet.xlsx",
		Status:       status,
		Stage:        models.StageCreating,
		TotalRows:    3,
		ValidCount:   1,
		InvalidCount: 2,
	}
	s.repo.batches[b.BatchID] = b
	return b
}

func TestBulkUploadVehicles_AcceptsWorkbook(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, uploadRequest(t, "Fleet.XLSX", []byte("workbook-bytes")), true)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	batchID := data["batch_id"].(string)
	_, err := uuid.Parse(batchID)
	require.NoError(t, err)
	assert.Equal(t, string(models.BulkUploadProcessing), data["status"])

	require.Len(t, s.repo.created, 1)
	batch := s.repo.created[0]
	assert.Equal(t, "ops@example.com", batch.UploadedBy)
	assert.Equal(t, "Fleet.XLSX", batch.FileName)
	assert.Equal(t, models.StageAccepted, batch.Stage)

	stored, err := os.ReadFile(filepath.Join(s.uploadDir, batchID+".xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "workbook-bytes", string(stored))

	require.Len(t, s.enqueuer.tasks, 1)
	var job services.BulkUploadJob
	require.NoError(t, json.Unmarshal(s.enqueuer.tasks[0].Payload(), &job))
	assert.Equal(t, batchID, job.BatchID)
	assert.Equal(t, "ops@example.com", job.ActorID)
	assert.Equal(t, filepath.Join(s.uploadDir, batchID+".xlsx"), job.FilePath)
}

func TestBulkUploadVehicles_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, uploadRequest(t, "fleet.xlsx", []byte("x")), false)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, s.repo.created)
}

func TestBulkUploadVehicles_RejectsOtherFileTypes(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, uploadRequest(t, "fleet.csv", []byte("a,b")), true)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid file type", body["message"])
	assert.Empty(t, s.repo.created)
}

func TestBulkUploadVehicles_MissingFile(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/vehicles/bulk-upload", nil)
	resp, _ := s.do(t, req, true)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestBulkUploadVehicles_EnqueueFailureClosesBatch(t *testing.T) {
	s := newTestServer(t)
	s.enqueuer.err = errors.New("redis: connection refused")

	resp, _ := s.do(t, uploadRequest(t, "fleet.xlsx", []byte("x")), true)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	require.Len(t, s.repo.created, 1)
	assert.Equal(t, []models.BulkUploadStatus{models.BulkUploadFailed}, s.repo.statusUpdates)

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetBulkUploadStatus(t *testing.T) {
	s := newTestServer(t)
	batch := s.addBatch(models.BulkUploadProcessing)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/vehicles/bulk-upload/"+batch.BatchID, nil), true)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, batch.BatchID, data["batchId"])
	assert.Equal(t, "processing", data["status"])
	assert.Equal(t, float64(3), data["totalRows"])
	assert.Equal(t, float64(2), data["invalidCount"])
	assert.Equal(t, false, data["errorReportAvailable"])

	// Processing batches are never cached.
	assert.Zero(t, s.cache.sets)
}

func TestGetBulkUploadStatus_CachesTerminalBatches(t *testing.T) {
	s := newTestServer(t)
	batch := s.addBatch(models.BulkUploadCompleted)
	url := "/vehicles/bulk-upload/" + batch.BatchID

	resp, _ := s.do(t, httptest.NewRequest(http.MethodGet, url, nil), true)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, url, nil), true)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, s.cache.sets)
	assert.Equal(t, 1, s.repo.getCalls)
}

func TestGetBulkUploadStatus_NotFound(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"not-a-uuid", uuid.New().String()} {
		resp, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/vehicles/bulk-upload/"+id, nil), true)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, id)
	}
}

func TestGetBulkUploadErrors(t *testing.T) {
	s := newTestServer(t)
	batch := s.addBatch(models.BulkUploadCompleted)
	s.repo.errorsFn = func() ([]models.VehicleBulkUploadRecord, int64, error) {
		return []models.VehicleBulkUploadRecord{{
			ID:               uuid.New(),
			BatchID:          batch.BatchID,
			VehicleRefID:     "V2",
			RowNumber:        3,
			ValidationStatus: models.RecordInvalid,
			CreationStatus:   models.CreationNotApplicable,
			ValidationErrors: datatypes.JSON(`[{"sheet":"Basic Information","row":3,"field":"VIN_Chassis_No","error_type":"REQUIRED_FIELD","message":"VIN_Chassis_No is required"}]`),
			VehicleData:      datatypes.JSON(`{"basic_information":{"row_number":3,"vehicle_ref_id":"V2","make":"Tata","model":"Prima","vin_chassis_no":"","gps_imei_no":"123456789012346"}}`),
		}}, 12, nil
	}

	url := "/vehicles/bulk-upload/" + batch.BatchID + "/errors?page=2&page_size=5&include_creation_failures=true"
	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, url, nil), true)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, repositories.BatchErrorFilter{IncludeCreationFailures: true, Limit: 5, Offset: 5}, s.repo.lastFilter)

	data := body["data"].(map[string]interface{})
	pagination := data["pagination"].(map[string]interface{})
	assert.Equal(t, float64(12), pagination["total_items"])
	assert.Equal(t, float64(3), pagination["total_pages"])

	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "V2", item["vehicleRefId"])
	assert.Equal(t, float64(3), item["rowNumber"])

	errs := item["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Equal(t, "REQUIRED_FIELD", errs[0].(map[string]interface{})["error_type"])

	fields := item["basicIdentifyingFields"].(map[string]interface{})
	assert.Equal(t, "Tata", fields["make"])
	assert.Equal(t, "123456789012346", fields["gpsImeiNo"])
}

func TestGetBulkUploadErrors_RejectsOversizedPage(t *testing.T) {
	s := newTestServer(t)
	batch := s.addBatch(models.BulkUploadCompleted)

	resp, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/vehicles/bulk-upload/"+batch.BatchID+"/errors?page_size=500", nil), true)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDownloadErrorReport(t *testing.T) {
	s := newTestServer(t)
	url := func(b *models.VehicleBulkUploadBatch) string {
		return "/vehicles/bulk-upload/" + b.BatchID + "/error-report"
	}

	noReport := s.addBatch(models.BulkUploadCompleted)
	resp, _ := s.do(t, httptest.NewRequest(http.MethodGet, url(noReport), nil), true)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	expired := s.addBatch(models.BulkUploadCompleted)
	expiredPath := filepath.Join(s.reportDir, services.ReportFileName(expired.BatchID))
	expired.ErrorReportPath = &expiredPath
	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, url(expired), nil), true)
	assert.Equal(t, fiber.StatusGone, resp.StatusCode)

	ready := s.addBatch(models.BulkUploadCompleted)
	readyPath := filepath.Join(s.reportDir, services.ReportFileName(ready.BatchID))
	require.NoError(t, os.MkdirAll(s.reportDir, 0755))
	require.NoError(t, os.WriteFile(readyPath, []byte("report"), 0644))
	ready.ErrorReportPath = &readyPath

	req := httptest.NewRequest(http.MethodGet, url(ready), nil)
	req.Header.Set(fiber.HeaderAuthorization, s.bearer)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), services.ReportFileName(ready.BatchID))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "spreadsheetml")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "report", string(body))
}
