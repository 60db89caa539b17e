package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Rishie123/billprocessor/model"
	"github.com/Rishie123/billprocessor/service"
)

// uploadModel answers the classification prompt and the extraction prompt
// with canned text, keyed on prompt wording.
type uploadModel struct {
	classifyText string
	extractText  string
}

func (m *uploadModel) Generate(_ context.Context, prompt string, _ []byte, _ string) (string, error) {
	if strings.Contains(prompt, "determine two things") {
		return m.classifyText, nil
	}
	return m.extractText, nil
}

type uploadArchive struct {
	folders map[string]string
	uploads int
	fail    bool
}

func (a *uploadArchive) EnsureFolder(_ context.Context, name string) (string, error) {
	if a.folders == nil {
		a.folders = make(map[string]string)
	}
	id, ok := a.folders[name]
	if !ok {
		id = fmt.Sprintf("folder-%d", len(a.folders)+1)
		a.folders[name] = id
	}
	return id, nil
}

func (a *uploadArchive) UploadBill(_ context.Context, folderID, fileName string, _ []byte, _ string) (string, error) {
	if a.fail {
		return "", fmt.Errorf("drive: 503")
	}
	a.uploads++
	return "https://drive.example.com/" + folderID + "/" + fileName, nil
}

// memWS is a minimal in-memory worksheet for driving the pipeline end to
// end from the HTTP layer.
type memWS struct {
	title   string
	headers []string
	rows    [][]string
}

func (w *memWS) Title() string { return w.title }

func (w *memWS) HeaderRow(_ context.Context) ([]string, error) {
	return append([]string(nil), w.headers...), nil
}

func (w *memWS) WriteHeaderRow(_ context.Context, startCol int, headers []string) error {
	for i, h := range headers {
		idx := startCol - 1 + i
		for len(w.headers) <= idx {
			w.headers = append(w.headers, "")
		}
		w.headers[idx] = h
	}
	return nil
}

func (w *memWS) AppendRow(_ context.Context, row []string) error {
	w.rows = append(w.rows, append([]string(nil), row...))
	return nil
}

type uploadLedger struct {
	sheets map[string]*memWS
}

func (l *uploadLedger) Worksheet(_ context.Context, title string) (service.Worksheet, error) {
	if l.sheets == nil {
		l.sheets = make(map[string]*memWS)
	}
	ws, ok := l.sheets[title]
	if !ok {
		ws = &memWS{title: title}
		l.sheets[title] = ws
	}
	return ws, nil
}

const (
	goodClassify = `{"bill_type": "Loading Bill", "party_name": "Sharma Traders"}`
	goodExtract  = `{"Contract No": "N/A", "Bill No": "1042", "Date": "12/07/2025",
		"Lorry No": "CG04AB1234", "Party Name": "Sharma Traders", "Weight": "24550",
		"Rate": "2150", "Bags": "491", "Quality": "IR Paddy"}`
)

func newBillRouter(t *testing.T, m service.ModelClient, archive service.Archive, ledger service.Ledger) (*gin.Engine, *service.BillStore) {
	t.Helper()

	store := service.NewBillStore(50)
	pipeline := service.NewPipeline(service.NewAnalysisService(m), archive, ledger, store)
	h := &BillHandler{pipeline: pipeline, store: store}

	r := gin.New()
	r.POST("/api/bills/upload", h.Upload)
	r.GET("/api/bills", h.List)
	r.GET("/api/bills/:id", h.Get)
	r.GET("/api/bills/:id/status", h.GetStatus)
	return r, store
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/bills/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadSuccess(t *testing.T) {
	archive := &uploadArchive{}
	ledger := &uploadLedger{}
	r, store := newBillRouter(t, &uploadModel{classifyText: goodClassify, extractText: goodExtract}, archive, ledger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "bill.jpg", []byte("not a real jpeg")))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID        string            `json:"id"`
		Status    string            `json:"status"`
		BillType  string            `json:"bill_type"`
		PartyName string            `json:"party_name"`
		DriveLink string            `json:"drive_link"`
		Record    map[string]string `json:"record"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != model.StatusDone {
		t.Errorf("expected status %q, got %q", model.StatusDone, resp.Status)
	}
	if resp.BillType != model.LoadingBill {
		t.Errorf("expected bill type %q, got %q", model.LoadingBill, resp.BillType)
	}
	if resp.PartyName != "Sharma Traders" {
		t.Errorf("expected party Sharma Traders, got %q", resp.PartyName)
	}
	if !strings.Contains(resp.DriveLink, "bill.jpg") {
		t.Errorf("expected drive link for bill.jpg, got %q", resp.DriveLink)
	}
	if resp.Record["Bill No"] != "1042" {
		t.Errorf("expected record to carry Bill No 1042, got %q", resp.Record["Bill No"])
	}

	bill := store.Get(resp.ID)
	if bill == nil {
		t.Fatal("bill not found in store")
	}
	if bill.Status != model.StatusDone {
		t.Errorf("expected stored status %q, got %q", model.StatusDone, bill.Status)
	}

	ws := ledger.sheets["Sharma Traders"]
	if ws == nil {
		t.Fatal("no worksheet created for party")
	}
	if len(ws.rows) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(ws.rows))
	}
	if archive.uploads != 1 {
		t.Errorf("expected 1 archive upload, got %d", archive.uploads)
	}
}

func TestUploadNoFile(t *testing.T) {
	r, _ := newBillRouter(t, &uploadModel{}, &uploadArchive{}, &uploadLedger{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/bills/upload", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUploadRejectsNonImageExtension(t *testing.T) {
	archive := &uploadArchive{}
	r, _ := newBillRouter(t, &uploadModel{classifyText: goodClassify, extractText: goodExtract}, archive, &uploadLedger{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "bill.pdf", []byte("%PDF-1.4")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if archive.uploads != 0 {
		t.Errorf("rejected upload should not reach the archive, got %d uploads", archive.uploads)
	}
}

func TestUploadClassificationFailure(t *testing.T) {
	archive := &uploadArchive{}
	r, store := newBillRouter(t, &uploadModel{classifyText: "I cannot read this image, sorry."}, archive, &uploadLedger{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "blurry.png", []byte("png bytes")))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Stage       string `json:"stage"`
		RawResponse string `json:"raw_response"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Stage != service.StageClassify {
		t.Errorf("expected stage %q, got %q", service.StageClassify, resp.Stage)
	}
	if !strings.Contains(resp.RawResponse, "cannot read") {
		t.Errorf("expected raw model text in response, got %q", resp.RawResponse)
	}
	if archive.uploads != 0 {
		t.Errorf("classification failure must not archive, got %d uploads", archive.uploads)
	}

	bill := store.Get(resp.ID)
	if bill == nil || bill.Status != model.StatusFailed {
		t.Errorf("expected stored bill to be failed, got %+v", bill)
	}
}

func TestUploadExtractionFailureKeepsDriveLink(t *testing.T) {
	archive := &uploadArchive{}
	r, store := newBillRouter(t, &uploadModel{classifyText: goodClassify, extractText: "no json here"}, archive, &uploadLedger{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "faded.jpg", []byte("jpeg bytes")))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID        string `json:"id"`
		Stage     string `json:"stage"`
		DriveLink string `json:"drive_link"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Stage != service.StageExtract {
		t.Errorf("expected stage %q, got %q", service.StageExtract, resp.Stage)
	}
	if !strings.Contains(resp.DriveLink, "faded.jpg") {
		t.Errorf("archived link should survive extraction failure, got %q", resp.DriveLink)
	}

	bill := store.Get(resp.ID)
	if bill == nil || bill.DriveLink == "" {
		t.Errorf("expected stored bill to keep its drive link, got %+v", bill)
	}
}

func TestUploadArchiveTransportFailure(t *testing.T) {
	archive := &uploadArchive{fail: true}
	r, _ := newBillRouter(t, &uploadModel{classifyText: goodClassify, extractText: goodExtract}, archive, &uploadLedger{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "bill.jpg", []byte("jpeg bytes")))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Stage string `json:"stage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Stage != service.StageArchive {
		t.Errorf("expected stage %q, got %q", service.StageArchive, resp.Stage)
	}
}

func TestListAndGet(t *testing.T) {
	r, store := newBillRouter(t, &uploadModel{}, &uploadArchive{}, &uploadLedger{})

	older := &model.Bill{ID: "b1", Filename: "a.jpg", Status: model.StatusDone, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &model.Bill{ID: "b2", Filename: "b.jpg", Status: model.StatusFailed, CreatedAt: time.Now()}
	store.Save(older)
	store.Save(newer)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bills", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var listResp struct {
		Bills []struct {
			ID string `json:"id"`
		} `json:"bills"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listResp.Bills) != 2 {
		t.Fatalf("expected 2 bills, got %d", len(listResp.Bills))
	}
	if listResp.Bills[0].ID != "b2" {
		t.Errorf("expected newest bill first, got %q", listResp.Bills[0].ID)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bills/b1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bills/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown bill, got %d", w.Code)
	}
}

func TestGetStatus(t *testing.T) {
	r, store := newBillRouter(t, &uploadModel{}, &uploadArchive{}, &uploadLedger{})

	store.Save(&model.Bill{ID: "b1", Status: model.StatusArchived, CreatedAt: time.Now()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bills/b1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if resp.Status != model.StatusArchived {
		t.Errorf("expected status %q, got %q", model.StatusArchived, resp.Status)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bills/missing/status", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
