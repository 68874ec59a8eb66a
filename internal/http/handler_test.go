package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"echallan-service/internal/compliance"
	"echallan-service/internal/config"
	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/domain/vehicle"
	"echallan-service/internal/evidence"
	"echallan-service/internal/media"
	"echallan-service/internal/notify"
	"echallan-service/internal/reference"
	"echallan-service/internal/repository"
	"echallan-service/internal/service"
)

var asOf = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type widthDetector map[int][]anpr.Candidate

func (d widthDetector) Detect(_ context.Context, img image.Image) []anpr.Candidate {
	return d[img.Bounds().Dx()]
}

type recordingNotifier struct {
	mu        sync.Mutex
	delivered []notify.Job
}

func (n *recordingNotifier) Enqueue(notify.Job) error { return nil }

func (n *recordingNotifier) Deliver(_ context.Context, job notify.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, job)
	return nil
}

type testServer struct {
	router   *gin.Engine
	notifier *recordingNotifier
	video    []image.Image
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	lapsed := asOf.AddDate(0, 0, -3).Format(compliance.ExpiryLayout)
	valid := asOf.AddDate(1, 0, 0).Format(compliance.ExpiryLayout)
	ka := vehicle.Record{
		Plate: "KA05EF9012", OwnerName: "Asha Rao", OwnerEmail: "asha@example.com", VehicleClass: "Private Car",
		FitnessExpiry: valid, InsuranceExpiry: lapsed, PUCExpiry: valid, PermitExpiry: valid, RoadTaxExpiry: valid,
	}
	mh := vehicle.Record{
		Plate: "MH2CD5678", OwnerName: "Vikram Shah", VehicleClass: "Private Car",
		FitnessExpiry: valid, InsuranceExpiry: valid, PUCExpiry: valid, PermitExpiry: valid, RoadTaxExpiry: valid,
	}

	dir := t.TempDir()
	store, err := evidence.NewLocalStore(dir, "/static/uploads")
	if err != nil {
		t.Fatal(err)
	}
	lifecycle := evidence.NewLifecycle(store)
	now := func() time.Time { return asOf }
	inspector := service.NewInspector(reference.NewStore([]vehicle.Record{ka, mh}), now)
	notifier := &recordingNotifier{}
	issuer := service.NewIssuer(repository.NewMemoryChallans(), inspector, lifecycle, zerolog.Nop(),
		service.WithClock(now),
		service.WithNotifier(notifier),
		service.WithRenderer(notify.NewPDFRenderer(store, "TEST ZONE")),
	)
	det := widthDetector{
		640: {{Box: image.Rect(10, 10, 120, 40), Text: "KA05EF9012", Confidence: 0.91}},
		320: {{Box: image.Rect(10, 10, 120, 40), Text: "MH2CD5678", Confidence: 0.88}},
	}

	cfg := &config.Config{
		HTTP: config.HTTPConfig{Addr: ":0", AllowedOrigins: []string{"*"}, MaxUploadMB: 8},
		Scan: config.ScanConfig{
			MaxFrames: 450, SampleEvery: 5, MinConfidence: 0.4,
			OfficialID: "OFFICER-01", OfficialName: "Traffic Officer", Location: "TEST ZONE",
		},
		Evidence: config.EvidenceConfig{Backend: "local", Dir: dir, URLPrefix: "/static/uploads"},
	}

	ts := &testServer{notifier: notifier}
	h := NewHandler(Deps{
		Issuer:    issuer,
		Scanner:   service.NewScanner(det, inspector, issuer, lifecycle, service.ScanConfig{MaxFrames: 450, SampleEvery: 5, MinConfidence: 0.4}, zerolog.Nop()),
		Inspector: inspector,
		Captures:  service.NewCaptures(repository.NewMemoryCaptures()),
		OpenVideo: func(context.Context, string) (media.Source, error) {
			return media.NewFrames(ts.video...), nil
		},
	}, cfg, zerolog.Nop())
	ts.router = NewRouter(h, cfg, zerolog.Nop())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, kind, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if kind != "" {
		if err := mw.WriteField("type", kind); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload_scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func pngOfWidth(t *testing.T, width int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, width, 240)), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type challanEnvelope struct {
	Data struct {
		ID         string   `json:"challan_id"`
		Plate      string   `json:"plate_number"`
		OwnerName  string   `json:"owner_name"`
		Violation  string   `json:"violation_type"`
		FineAmount string   `json:"fine_amount"`
		Status     string   `json:"status"`
		Violations []string `json:"violations"`
	} `json:"data"`
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestVehicleLookup(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/vehicles/ka-05-ef-9012", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var found struct {
		Found bool              `json:"found"`
		Data  compliance.Report `json:"data"`
	}
	decode(t, rec, &found)
	if !found.Found || found.Data.Plate != "KA05EF9012" {
		t.Fatalf("lookup = %+v", found)
	}
	if found.Data.InsuranceStatus != compliance.StatusExpired || found.Data.TotalFine.String() != "2000" {
		t.Fatalf("report = %+v", found.Data)
	}

	rec = ts.do(t, http.MethodGet, "/api/vehicles/XX00ZZ0000", "")
	var missing struct {
		Found bool `json:"found"`
	}
	decode(t, rec, &missing)
	if rec.Code != http.StatusOK || missing.Found {
		t.Fatalf("unknown plate: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestManualChallanLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/challans",
		`{"plate_number":"ka05ef9012","violation":"Signal Jump","amount":7000,"official_id":"OFFICER-07","official_name":"R. Kumar"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
	}
	var created challanEnvelope
	decode(t, rec, &created)
	if created.Data.Plate != "KA05EF9012" || created.Data.OwnerName != "Asha Rao" {
		t.Fatalf("created = %+v", created.Data)
	}
	if created.Data.Status != "Pending" || created.Data.FineAmount != "7000" {
		t.Fatalf("created = %+v", created.Data)
	}
	id := created.Data.ID

	rec = ts.do(t, http.MethodGet, "/api/vehicles/KA05EF9012/challans", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), id) {
		t.Fatalf("pending: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/challans/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodPost, "/api/challans/"+id+"/pay", "")
		var paid challanEnvelope
		decode(t, rec, &paid)
		if rec.Code != http.StatusOK || paid.Data.Status != "Paid" {
			t.Fatalf("pay #%d: status %d body %s", i+1, rec.Code, rec.Body.String())
		}
	}

	rec = ts.do(t, http.MethodGet, "/api/vehicles/KA05EF9012/challans", "")
	if strings.Contains(rec.Body.String(), id) {
		t.Fatalf("paid challan still pending: %s", rec.Body.String())
	}
}

func TestManualChallanValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing plate", `{"amount":100}`, http.StatusBadRequest},
		{"malformed json", `{"plate_number":`, http.StatusBadRequest},
		{"negative amount", `{"plate_number":"KA05EF9012","amount":-5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/challans", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestUnknownChallan(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/challans/ECH-000000000000", "/api/challans/ECH-000000000000/document"} {
		rec := ts.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
	rec := ts.do(t, http.MethodPost, "/api/challans/ECH-000000000000/pay", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("pay status = %d", rec.Code)
	}
}

func TestUploadImageIssuesChallan(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "image", "car.png", pngOfWidth(t, 640))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp scanResponse
	decode(t, rec, &resp)
	if !resp.Success || resp.Plate != "KA05EF9012" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.ChallanID == nil || !strings.HasPrefix(*resp.ChallanID, "ECH-") {
		t.Fatalf("challan id = %v", resp.ChallanID)
	}
	if len(resp.Violations) != 1 || resp.Violations[0] != "Expired Insurance" {
		t.Fatalf("violations = %v", resp.Violations)
	}
	if !strings.HasPrefix(resp.ImageURL, "/static/uploads/KA05EF9012_") {
		t.Fatalf("image url = %q", resp.ImageURL)
	}
	if len(resp.Detections) != 1 || resp.Detections[0].Status != anpr.ResultIssued {
		t.Fatalf("detections = %+v", resp.Detections)
	}

	img := ts.do(t, http.MethodGet, resp.ImageURL, "")
	if img.Code != http.StatusOK || img.Body.Len() == 0 {
		t.Fatalf("proof image: status %d", img.Code)
	}

	doc := ts.do(t, http.MethodGet, "/api/challans/"+*resp.ChallanID+"/document", "")
	if doc.Code != http.StatusOK {
		t.Fatalf("document status = %d", doc.Code)
	}
	if got := doc.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if got := doc.Header().Get("Content-Disposition"); !strings.Contains(got, notify.DocumentName(*resp.ChallanID)) {
		t.Fatalf("disposition = %q", got)
	}
	if !bytes.HasPrefix(doc.Body.Bytes(), []byte("%PDF-")) {
		t.Fatal("document is not a PDF")
	}
}

func TestUploadImageWithoutPlate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "", "blank.png", pngOfWidth(t, 100))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp scanResponse
	decode(t, rec, &resp)
	if resp.Success || resp.Message != "Plate not detected clearly" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.ChallanID != nil || resp.Detections == nil || len(resp.Detections) != 0 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestUploadVideoCleanPlate(t *testing.T) {
	ts := newTestServer(t)
	ts.video = []image.Image{
		image.NewRGBA(image.Rect(0, 0, 320, 240)),
		image.NewRGBA(image.Rect(0, 0, 320, 240)),
	}

	rec := ts.upload(t, "video", "clip.mp4", []byte("not really a video"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp scanResponse
	decode(t, rec, &resp)
	if !resp.Success || resp.Plate != "MH2CD5678" || resp.ChallanID != nil {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Violations) != 0 || !resp.TotalFine.IsZero() {
		t.Fatalf("clean plate reported violations: %+v", resp)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.upload(t, "audio", "x.wav", []byte("x")); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type: status = %d", rec.Code)
	}
	if rec := ts.upload(t, "image", "x.png", []byte("garbage")); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad image: status = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload_scan", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file: status = %d", rec.Code)
	}
}

func TestResendNotice(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/challans", `{"plate_number":"MH2CD5678","amount":500}`)
	var created challanEnvelope
	decode(t, rec, &created)

	rec = ts.do(t, http.MethodPost, "/api/challans/"+created.Data.ID+"/notify", `{"email":"not-an-email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid email: status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/challans/"+created.Data.ID+"/notify", `{"email":"clerk@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if len(ts.notifier.delivered) != 1 || ts.notifier.delivered[0].To != "clerk@example.com" {
		t.Fatalf("delivered = %+v", ts.notifier.delivered)
	}
}

func TestDashboardAndCaptures(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/challans", `{"plate_number":"KA05EF9012","violation":"Expired Insurance","amount":2000}`)

	rec := ts.do(t, http.MethodGet, "/api/dashboard/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats struct {
		Data struct {
			Total           int64            `json:"total"`
			Pending         int64            `json:"pending"`
			ViolationCounts map[string]int64 `json:"violationCounts"`
		} `json:"data"`
	}
	decode(t, rec, &stats)
	if stats.Data.Total != 1 || stats.Data.Pending != 1 {
		t.Fatalf("stats = %+v", stats.Data)
	}
	if stats.Data.ViolationCounts["Expired Insurance"] != 1 {
		t.Fatalf("violation counts = %v", stats.Data.ViolationCounts)
	}

	ts.do(t, http.MethodPost, "/api/challans", `{"plate_number":"DL1AB1234","violation":"Expired PUC","amount":10000}`)
	rec = ts.do(t, http.MethodGet, "/api/challans?limit=1", "")
	var recent struct {
		Data []struct {
			Plate string `json:"plate_number"`
		} `json:"data"`
	}
	decode(t, rec, &recent)
	if rec.Code != http.StatusOK || len(recent.Data) != 1 {
		t.Fatalf("recent challans: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, http.MethodGet, "/api/challans", "")
	decode(t, rec, &recent)
	if len(recent.Data) != 2 {
		t.Fatalf("recent challans without limit = %+v", recent.Data)
	}

	rec = ts.do(t, http.MethodGet, "/api/captures/recent?limit=abc", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Fatalf("captures: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestLiveEndpointsDisabled(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/video_feed", "/api/live/events"} {
		if rec := ts.do(t, http.MethodGet, path, ""); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
	if rec := ts.do(t, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("no route: status = %d", rec.Code)
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
}
