package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"dealflow/api/internal/store"
)

func newTestServer(t *testing.T) (http.Handler, testEnv) {
	t.Helper()
	env := newTestService(t, nil)
	server := NewHTTPServer(env.service, "*", 0)
	return server.Handler(), env
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func signUpUser(t *testing.T, handler http.Handler, email, role string) string {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       email,
		"password":    "correct-horse",
		"displayName": "Test User",
		"role":        role,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("signup returned %d: %s", recorder.Code, recorder.Body.String())
	}
	token, _ := decodeResponse(t, recorder)["token"].(string)
	if token == "" {
		t.Fatal("signup response missing token")
	}
	return token
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)
	recorder := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if decodeResponse(t, recorder)["ok"] != true {
		t.Fatalf("unexpected health payload %s", recorder.Body.String())
	}
}

func TestRequiresBearerToken(t *testing.T) {
	handler, _ := newTestServer(t)

	recorder := doJSON(t, handler, http.MethodGet, "/api/startups", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/startups", "not-a-real-token", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", recorder.Code)
	}
}

func TestSignUpSignInAndList(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signUpUser(t, handler, "avery@fund.dev", "analyst")

	// Wrong password is rejected.
	recorder := doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    "avery@fund.dev",
		"password": "wrong-password",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    "avery@fund.dev",
		"password": "correct-horse",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("signin returned %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/startups?page=abc&limit=xyz", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list returned %d: %s", recorder.Code, recorder.Body.String())
	}
	pagination := decodeResponse(t, recorder)["pagination"].(map[string]any)
	if pagination["page"] != float64(1) || pagination["limit"] != float64(50) {
		t.Fatalf("invalid paging params should fall back to defaults, got %v", pagination)
	}
}

func TestDuplicateSignUpConflicts(t *testing.T) {
	handler, _ := newTestServer(t)
	signUpUser(t, handler, "avery@fund.dev", "analyst")

	recorder := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       "avery@fund.dev",
		"password":    "correct-horse",
		"displayName": "Again",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", recorder.Code)
	}
}

func TestViewerCannotWrite(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signUpUser(t, handler, "viewer@fund.dev", "viewer")

	recorder := doJSON(t, handler, http.MethodPost, "/api/startups", token, map[string]any{"name": "Acme"})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer write, got %d", recorder.Code)
	}

	// Reads stay available.
	recorder = doJSON(t, handler, http.MethodGet, "/api/startups", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for viewer read, got %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/import/history", token, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer import access, got %d", recorder.Code)
	}
}

func TestCreateStartupSingleAndBulk(t *testing.T) {
	handler, env := newTestServer(t)
	token := signUpUser(t, handler, "avery@fund.dev", "analyst")

	recorder := doJSON(t, handler, http.MethodPost, "/api/startups", token,
		map[string]any{"name": "Acme Robotics", "score": 8.4})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", recorder.Code, recorder.Body.String())
	}
	created := decodeResponse(t, recorder)
	if created["name"] != "Acme Robotics" {
		t.Fatalf("unexpected create payload %s", recorder.Body.String())
	}

	// An array body dispatches to the bulk path.
	recorder = doJSON(t, handler, http.MethodPost, "/api/startups", token,
		[]map[string]any{{"name": "Beta Labs"}, {"name": "Gamma Inc"}})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("bulk create returned %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["count"] != float64(2) {
		t.Fatalf("expected count 2, got %v", payload["count"])
	}
	if len(env.store.startups) != 3 {
		t.Fatalf("expected 3 stored startups, got %d", len(env.store.startups))
	}
}

func TestGetStartupNotFound(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signUpUser(t, handler, "avery@fund.dev", "analyst")

	recorder := doJSON(t, handler, http.MethodGet, "/api/startups/su_missing", token, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestThresholdIssueDefaultsOverHTTP(t *testing.T) {
	handler, env := newTestServer(t)
	token := signUpUser(t, handler, "avery@fund.dev", "analyst")
	env.store.startups["su_1"] = store.Startup{ID: "su_1", Name: "Acme"}

	recorder := doJSON(t, handler, http.MethodPost, "/api/threshold-issues", token, map[string]any{
		"startupId":  "su_1",
		"category":   "Legal",
		"issue":      "Pending litigation",
		"riskRating": "Medium",
		"mitigation": "External counsel review",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create issue returned %d: %s", recorder.Code, recorder.Body.String())
	}
	issue := decodeResponse(t, recorder)
	if issue["status"] != "Open" || issue["source"] != "Manual" {
		t.Fatalf("expected Open/Manual defaults, got %s", recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/threshold-issues?startupId=su_1", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list issues returned %d", recorder.Code)
	}
	issues := decodeResponse(t, recorder)["issues"].([]any)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}
}

func TestLegalDocumentUpload(t *testing.T) {
	handler, env := newTestServer(t)
	token := signUpUser(t, handler, "avery@fund.dev", "analyst")
	env.store.startups["su_1"] = store.Startup{ID: "su_1", Name: "Acme"}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("startupId", "su_1")
	_ = writer.WriteField("category", "contracts")
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="nda.txt"`)
	partHeader.Set("Content-Type", "text/plain")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	fmt.Fprint(part, "hello world")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/legal-documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("upload returned %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	doc := payload["document"].(map[string]any)
	if doc["characterCount"] != float64(11) || doc["wordCount"] != float64(2) {
		t.Fatalf("expected 11 chars / 2 words, got %s", recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/legal-documents?startupId=su_1&category=contracts", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list documents returned %d", recorder.Code)
	}
	docs := decodeResponse(t, recorder)["documents"].([]any)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}

	recorder = doJSON(t, handler, http.MethodDelete,
		"/api/legal-documents?startupId=su_1&category=contracts&documentId="+doc["id"].(string), token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("delete document returned %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestUploadWithoutFileRejected(t *testing.T) {
	handler, env := newTestServer(t)
	token := signUpUser(t, handler, "avery@fund.dev", "analyst")
	env.store.startups["su_1"] = store.Startup{ID: "su_1", Name: "Acme"}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("startupId", "su_1")
	_ = writer.WriteField("category", "contracts")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/legal-documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", recorder.Code)
	}
}

func TestClientStateRoutes(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signUpUser(t, handler, "avery@fund.dev", "analyst")

	withSession := func(recorder *httptest.ResponseRecorder, method, path string, body any) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != nil {
			encoded, _ := json.Marshal(body)
			reader = bytes.NewReader(encoded)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Session-ID", "tab-1")
		handler.ServeHTTP(recorder, req)
		return recorder
	}

	recorder := withSession(httptest.NewRecorder(), http.MethodPut, "/api/client-state/scroll",
		map[string]any{"view": "pipeline", "y": 420.5})
	if recorder.Code != http.StatusOK {
		t.Fatalf("save scroll returned %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = withSession(httptest.NewRecorder(), http.MethodGet, "/api/client-state/scroll?view=pipeline", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("get scroll returned %d", recorder.Code)
	}
	position := decodeResponse(t, recorder)["position"].(map[string]any)
	if position["y"] != float64(420.5) {
		t.Fatalf("expected y 420.5, got %v", position["y"])
	}

	// An unknown view has no stored position.
	recorder = withSession(httptest.NewRecorder(), http.MethodGet, "/api/client-state/scroll?view=table", nil)
	if decodeResponse(t, recorder)["position"] != nil {
		t.Fatalf("expected null position, got %s", recorder.Body.String())
	}

	recorder = withSession(httptest.NewRecorder(), http.MethodPut, "/api/client-state/view-mode",
		map[string]any{"viewMode": "kanban"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid view mode, got %d", recorder.Code)
	}

	recorder = withSession(httptest.NewRecorder(), http.MethodGet, "/api/client-state/view-mode", nil)
	payload := decodeResponse(t, recorder)
	if payload["viewMode"] != "grid" || payload["stored"] != false {
		t.Fatalf("expected grid default, got %s", recorder.Body.String())
	}
}

func TestSearchRejectsNonIntegerPaging(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signUpUser(t, handler, "avery@fund.dev", "analyst")

	recorder := doJSON(t, handler, http.MethodGet, "/api/search?q=acme&limit=abc", token, nil)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for non-integer limit, got %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/search?q=acme", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("search returned %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestSoftSessionEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)

	recorder := doJSON(t, handler, http.MethodGet, "/api/session", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if decodeResponse(t, recorder)["authenticated"] != false {
		t.Fatal("expected unauthenticated session")
	}

	token := signUpUser(t, handler, "avery@fund.dev", "analyst")
	recorder = doJSON(t, handler, http.MethodGet, "/api/session", token, nil)
	payload := decodeResponse(t, recorder)
	if payload["authenticated"] != true || payload["role"] != "analyst" {
		t.Fatalf("unexpected session payload %s", recorder.Body.String())
	}
}

func TestPreflightWritesHeaderOnly(t *testing.T) {
	handler, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/startups", nil)
	req.Header.Set("Origin", "https://app.fund.dev")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	if recorder.Body.Len() != 0 {
		t.Fatalf("preflight must not carry a body, got %q", recorder.Body.String())
	}
	if recorder.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("expected CORS headers on preflight")
	}
}

func TestReconcileMappingEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)
	token := signUpUser(t, handler, "avery@fund.dev", "analyst")

	recorder := doJSON(t, handler, http.MethodPost, "/api/import/reconcile", token, map[string]any{
		"headers": []string{"Company", "Homepage"},
		"suggestions": []map[string]any{{
			"csvHeader":         "Homepage",
			"suggestedCategory": "companyInfo",
			"suggestedField":    "website",
		}},
		"assignments": map[string]string{"name": "Company"},
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("reconcile returned %d: %s", recorder.Code, recorder.Body.String())
	}
	confirmed := decodeResponse(t, recorder)["mapping"].(map[string]any)
	if confirmed["name"] != "Company" || confirmed["website"] != "Homepage" {
		t.Fatalf("unexpected confirmed mapping %v", confirmed)
	}

	// The name gate survives the transport layer.
	recorder = doJSON(t, handler, http.MethodPost, "/api/import/reconcile", token, map[string]any{
		"headers": []string{"Industry"},
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without name mapping, got %d", recorder.Code)
	}
}
