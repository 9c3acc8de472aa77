package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/auth"
	"github.com/erazemk/popis/internal/blob"
	"github.com/erazemk/popis/internal/config"
	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/ident"
	"github.com/erazemk/popis/internal/imaging"
	"github.com/erazemk/popis/internal/importer"
	"github.com/erazemk/popis/internal/items"
	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/receipt"
	"github.com/erazemk/popis/internal/store"
	"github.com/erazemk/popis/internal/taxonomy"
)

const testSecret = "test-secret"

var testSettings = config.Settings{ItemsPerPage: 2, MaxImportBytes: 1 << 20}

type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, image []byte, mime string) (*receipt.Fields, error) {
	return &receipt.Fields{
		Vendor:       "Hardware Store",
		PurchaseDate: "2024-05-02",
		Items: []receipt.LineItem{
			{Name: "Hammer", Quantity: 1, UnitPrice: "19.99"},
			{Name: "Nails", Quantity: 3, UnitPrice: "4.50"},
		},
	}, nil
}

func setupTestServer(t *testing.T, settings config.Settings, extractor receipt.Extractor) *httptest.Server {
	t.Helper()
	server, _ := setupTestServerWithStore(t, settings, extractor)
	return server
}

func setupTestServerWithStore(t *testing.T, settings config.Settings, extractor receipt.Extractor) (*httptest.Server, *store.Store) {
	t.Helper()
	s := store.New(db.NewTestDB(t))
	log := audit.New(s)
	live := config.NewLive("", settings)
	m := metrics.New()
	urls := ident.NewResolver("")
	manager := items.New(s, log, urls, items.WithPageSize(live.ItemsPerPage), items.WithMetrics(m))

	router := NewRouter(Deps{
		Items:    manager,
		Taxonomy: taxonomy.New(s, log),
		Audit:    log,
		Importer: importer.New(manager, log, m),
		Media:    blob.NewMemory(),
		Receipts: extractor,
		Metrics:  m,
		Settings: live,
		URLs:     urls,
		Images:   imaging.Options{MaxDimension: 64},

		Secret:      testSecret,
		Revocations: s,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, s
}

func request(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func pngUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for x := 0; x < 120; x++ {
		for y := 0; y < 80; y++ {
			img.Set(x, y, color.RGBA{40, 160, 90, 255})
		}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestHealthAndMetrics(t *testing.T) {
	server := setupTestServer(t, testSettings, nil)

	resp := request(t, "GET", server.URL+"/health", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}

	resp = request(t, "GET", server.URL+"/metrics", "", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "popis_http_request_duration_seconds") {
		t.Error("expected request histogram in metrics output")
	}
}

func TestItemsAPIFlow(t *testing.T) {
	server := setupTestServer(t, testSettings, nil)

	resp := request(t, "POST", server.URL+"/api/items", "", map[string]any{
		"name":           "Laptop",
		"quantity":       1,
		"sku":            "DX-15",
		"original_price": "1299.00",
	})
	expectStatus(t, resp, http.StatusCreated)
	var created model.Item
	decode(t, resp, &created)
	if created.BarcodeData != "DX-15" {
		t.Errorf("expected barcode from SKU, got %q", created.BarcodeData)
	}
	if !strings.HasPrefix(created.QRCodeData, server.URL+"/inventory/") {
		t.Errorf("expected QR payload on request host, got %q", created.QRCodeData)
	}

	for _, name := range []string{"Mouse", "Keyboard"} {
		expectStatus(t, request(t, "POST", server.URL+"/api/items", "", map[string]any{"name": name, "quantity": 3}), http.StatusCreated)
	}

	resp = request(t, "GET", server.URL+"/api/items?page=2", "", nil)
	expectStatus(t, resp, http.StatusOK)
	var page model.ItemPage
	decode(t, resp, &page)
	if page.Total != 3 || page.PerPage != 2 || len(page.Items) != 1 {
		t.Errorf("unexpected page: total=%d per_page=%d items=%d", page.Total, page.PerPage, len(page.Items))
	}

	itemURL := server.URL + "/api/items/" + created.BarcodeData
	resp = request(t, "GET", itemURL, "", nil)
	expectStatus(t, resp, http.StatusBadRequest)

	itemURL = server.URL + "/api/items/" + recordPath(created.ID)
	resp = request(t, "PUT", itemURL, "", map[string]any{"room": "Office"})
	expectStatus(t, resp, http.StatusOK)
	var updated model.Item
	decode(t, resp, &updated)
	if updated.Room != "Office" || updated.Name != "Laptop" {
		t.Errorf("unexpected update result: %+v", updated)
	}

	resp = request(t, "PUT", itemURL+"/status", "", map[string]string{"status": "Sold"})
	expectStatus(t, resp, http.StatusOK)
	var sold model.Item
	decode(t, resp, &sold)
	if sold.Status != model.StatusSold || sold.SoldDate == nil {
		t.Errorf("expected sold with date, got %q %v", sold.Status, sold.SoldDate)
	}

	resp = request(t, "PUT", itemURL+"/status", "", map[string]string{"status": "lost"})
	expectStatus(t, resp, http.StatusBadRequest)

	expectStatus(t, request(t, "DELETE", itemURL, "", nil), http.StatusOK)
	expectStatus(t, request(t, "GET", itemURL, "", nil), http.StatusNotFound)
	expectStatus(t, request(t, "DELETE", itemURL, "", nil), http.StatusNotFound)
}

func recordPath(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestCreateItemValidation(t *testing.T) {
	server := setupTestServer(t, testSettings, nil)

	resp := request(t, "POST", server.URL+"/api/items", "", map[string]any{"name": "  ", "quantity": 1})
	expectStatus(t, resp, http.StatusBadRequest)
	var body map[string]string
	decode(t, resp, &body)
	if body["error"] != "Item name is required" {
		t.Errorf("unexpected error message %q", body["error"])
	}

	expectStatus(t, request(t, "POST", server.URL+"/api/items", "", map[string]any{"name": "Box", "quantity": -1}), http.StatusBadRequest)
	expectStatus(t, request(t, "GET", server.URL+"/api/items?status=lost", "", nil), http.StatusBadRequest)
	expectStatus(t, request(t, "GET", server.URL+"/api/items?page=x", "", nil), http.StatusBadRequest)
}

func TestBulkEndpoints(t *testing.T) {
	server := setupTestServer(t, testSettings, nil)

	var ids []int64
	for _, name := range []string{"Chair", "Desk", "Lamp"} {
		resp := request(t, "POST", server.URL+"/api/items", "", map[string]any{"name": name, "quantity": 1})
		expectStatus(t, resp, http.StatusCreated)
		var item model.Item
		decode(t, resp, &item)
		ids = append(ids, item.ID)
	}

	resp := request(t, "POST", server.URL+"/api/items/bulk-status", "", map[string]any{"ids": ids[:2], "status": "in use"})
	expectStatus(t, resp, http.StatusOK)
	var updated map[string]int
	decode(t, resp, &updated)
	if updated["updated"] != 2 {
		t.Errorf("expected 2 updated, got %d", updated["updated"])
	}

	resp = request(t, "POST", server.URL+"/api/items/bulk-delete", "", map[string]any{"ids": []int64{ids[0], 9999}})
	expectStatus(t, resp, http.StatusOK)
	var deleted map[string]int
	decode(t, resp, &deleted)
	if deleted["deleted"] != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted["deleted"])
	}

	expectStatus(t, request(t, "POST", server.URL+"/api/items/bulk-delete", "", map[string]any{"ids": []int64{}}), http.StatusBadRequest)
}

func TestActorToken(t *testing.T) {
	server := setupTestServer(t, testSettings, nil)

	token, err := auth.GenerateToken(testSecret, "maja", 0)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	expectStatus(t, request(t, "POST", server.URL+"/api/items", token, map[string]any{"name": "Drill", "quantity": 1}), http.StatusCreated)
	expectStatus(t, request(t, "POST", server.URL+"/api/items", "", map[string]any{"name": "Saw", "quantity": 1}), http.StatusCreated)

	resp := request(t, "GET", server.URL+"/api/audit?table=items", "", nil)
	expectStatus(t, resp, http.StatusOK)
	var entries []model.AuditEntry
	decode(t, resp, &entries)
	if len(entries) != 4 {
		t.Fatalf("expected 4 audit entries, got %d", len(entries))
	}
	if entries[0].Actor != audit.Anonymous || entries[3].Actor != "maja" {
		t.Errorf("unexpected actors: %q, %q", entries[0].Actor, entries[3].Actor)
	}

	expectStatus(t, request(t, "GET", server.URL+"/api/items", "garbage", nil), http.StatusUnauthorized)

	forged, _ := auth.GenerateToken("other-secret", "maja", 0)
	expectStatus(t, request(t, "GET", server.URL+"/api/items", forged, nil), http.StatusUnauthorized)
}

func TestRevokedToken(t *testing.T) {
	server, s := setupTestServerWithStore(t, testSettings, nil)

	token, _ := auth.GenerateToken(testSecret, "maja", 0)
	expectStatus(t, request(t, "GET", server.URL+"/api/items", token, nil), http.StatusOK)

	claims, err := auth.ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if err := s.RevokeToken(context.Background(), claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	expectStatus(t, request(t, "GET", server.URL+"/api/items", token, nil), http.StatusUnauthorized)
}

func TestImportAndExport(t *testing.T) {
	server := setupTestServer(t, testSettings, nil)

	csv := "name,quantity,category,purchase_price\n" +
		"Drill,2,Tools,$129.00\n" +
		",1,Tools,\n" +
		"Saw,1,Tools,45\n"
	resp, err := http.Post(server.URL+"/api/items/import?source=tools.csv", "text/csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("import request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	var result model.ImportResult
	decode(t, resp, &result)
	if result.SuccessCount != 2 || result.ErrorCount != 1 {
		t.Fatalf("unexpected import result: %+v", result)
	}
	if result.Errors[0].Row != 3 {
		t.Errorf("expected error on row 3, got %d", result.Errors[0].Row)
	}

	resp = request(t, "GET", server.URL+"/api/items/export?format=csv", "", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Drill") || !strings.Contains(string(body), "129.00") {
		t.Errorf("export missing imported item:\n%s", body)
	}

	resp = request(t, "GET", server.URL+"/api/items/export?format=xlsx", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if resp.Header.Get("Content-Type") != xlsxContentType {
		t.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	expectStatus(t, request(t, "GET", server.URL+"/api/items/export?format=pdf", "", nil), http.StatusBadRequest)

	resp = request(t, "GET", server.URL+"/api/items/import/template", "", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ = io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "name,") {
		t.Errorf("unexpected template:\n%s", body)
	}
}

func TestImportRejectsOversizedAndEmpty(t *testing.T) {
	server := setupTestServer(t, config.Settings{ItemsPerPage: 10, MaxImportBytes: 32}, nil)

	big := "name,quantity\n" + strings.Repeat("Widget,1\n", 20)
	resp, err := http.Post(server.URL+"/api/items/import", "text/csv", strings.NewReader(big))
	if err != nil {
		t.Fatalf("import request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusRequestEntityTooLarge)

	resp, err = http.Post(server.URL+"/api/items/import", "text/csv", strings.NewReader(""))
	if err != nil {
		t.Fatalf("import request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestTaxonomyAPI(t *testing.T) {
	server := setupTestServer(t, testSettings, nil)
	base := server.URL + "/api/taxonomy/category"

	resp := request(t, "GET", base, "", nil)
	expectStatus(t, resp, http.StatusOK)
	var options []model.Option
	decode(t, resp, &options)
	if len(options) != len(taxonomy.Defaults[model.KindCategory]) {
		t.Errorf("expected seeded defaults, got %d options", len(options))
	}

	expectStatus(t, request(t, "POST", base, "", map[string]string{"name": "Drones"}), http.StatusCreated)
	expectStatus(t, request(t, "POST", base, "", map[string]string{"name": "drones"}), http.StatusConflict)
	expectStatus(t, request(t, "DELETE", base+"/Drones", "", nil), http.StatusOK)
	expectStatus(t, request(t, "DELETE", base+"/Drones", "", nil), http.StatusNotFound)

	resp = request(t, "POST", base+"/bulk-delete", "", map[string][]string{"names": {"Tools", "Books", "Missing"}})
	expectStatus(t, resp, http.StatusOK)
	var deleted map[string]int
	decode(t, resp, &deleted)
	if deleted["deleted"] != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted["deleted"])
	}

	expectStatus(t, request(t, "GET", server.URL+"/api/taxonomy/colour", "", nil), http.StatusBadRequest)

	resp = request(t, "GET", server.URL+"/api/taxonomy", "", nil)
	expectStatus(t, resp, http.StatusOK)
	var all map[model.Kind][]model.Option
	decode(t, resp, &all)
	if len(all) != len(model.Kinds) {
		t.Errorf("expected every kind, got %d", len(all))
	}
}

func TestImageUploadAndMedia(t *testing.T) {
	server := setupTestServer(t, testSettings, nil)

	resp := request(t, "POST", server.URL+"/api/items", "", map[string]any{"name": "Vase", "quantity": 1})
	expectStatus(t, resp, http.StatusCreated)
	var item model.Item
	decode(t, resp, &item)

	body, contentType := pngUpload(t)
	req, _ := http.NewRequest("PUT", server.URL+"/api/items/"+recordPath(item.ID)+"/images/product", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	var updated model.Item
	decode(t, resp, &updated)
	if !strings.HasPrefix(updated.ProductImageURL, server.URL+"/media/items/") {
		t.Fatalf("unexpected product image url %q", updated.ProductImageURL)
	}

	media, err := http.Get(updated.ProductImageURL)
	if err != nil {
		t.Fatalf("media request: %v", err)
	}
	defer media.Body.Close()
	expectStatus(t, media, http.StatusOK)
	if media.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("unexpected media type %q", media.Header.Get("Content-Type"))
	}
	photo, _, err := image.DecodeConfig(media.Body)
	if err != nil {
		t.Fatalf("decoding stored image: %v", err)
	}
	if photo.Width != 64 {
		t.Errorf("expected image scaled to 64px, got %d", photo.Width)
	}

	body, contentType = pngUpload(t)
	req, _ = http.NewRequest("PUT", server.URL+"/api/items/"+recordPath(item.ID)+"/images/banner", body)
	req.Header.Set("Content-Type", contentType)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)

	expectStatus(t, request(t, "GET", server.URL+"/media/items/missing.jpg", "", nil), http.StatusNotFound)
}

func TestReceiptExtract(t *testing.T) {
	disabled := setupTestServer(t, testSettings, nil)
	body, contentType := pngUpload(t)
	resp, err := http.Post(disabled.URL+"/api/receipts/extract", contentType, body)
	if err != nil {
		t.Fatalf("extract request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusServiceUnavailable)

	server := setupTestServer(t, testSettings, fakeExtractor{})
	body, contentType = pngUpload(t)
	resp, err = http.Post(server.URL+"/api/receipts/extract", contentType, body)
	if err != nil {
		t.Fatalf("extract request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	var out struct {
		Drafts          []model.NewItem `json:"drafts"`
		Summary         string          `json:"summary"`
		ReceiptImageURL string          `json:"receipt_image_url"`
	}
	decode(t, resp, &out)
	if len(out.Drafts) != 2 || out.Drafts[1].Quantity != 3 {
		t.Fatalf("unexpected drafts: %+v", out.Drafts)
	}
	if out.Drafts[0].ReceiptImageURL != out.ReceiptImageURL || out.ReceiptImageURL == "" {
		t.Errorf("drafts not linked to stored receipt: %q", out.Drafts[0].ReceiptImageURL)
	}
	if out.Summary != "2 items from Hardware Store" {
		t.Errorf("unexpected summary %q", out.Summary)
	}
}

func TestSettingsEndpoint(t *testing.T) {
	server := setupTestServer(t, testSettings, nil)

	resp := request(t, "GET", server.URL+"/api/settings", "", nil)
	expectStatus(t, resp, http.StatusOK)
	var out struct {
		ItemsPerPage    int      `json:"items_per_page"`
		Statuses        []string `json:"statuses"`
		MediaDriver     string   `json:"media_driver"`
		ReceiptsEnabled bool     `json:"receipts_enabled"`
	}
	decode(t, resp, &out)
	if out.ItemsPerPage != 2 || len(out.Statuses) != 3 || out.MediaDriver != "memory" || out.ReceiptsEnabled {
		t.Errorf("unexpected settings: %+v", out)
	}
}
