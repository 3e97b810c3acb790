package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/simp-lee/goboot/internal/cast"
	"github.com/simp-lee/goboot/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	logs   *bytes.Buffer
}

// setupRecordEnv serves the record API over an in-memory database holding
// two persons (Sharma with two clients, Verma with none), one client
// without a person and 12 cities. City i has state_id i%3 and code
// "C%02d".
func setupRecordEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sharma := Person{Name: "Sharma"}
	verma := Person{Name: "Verma"}
	for _, p := range []*Person{&sharma, &verma} {
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("seed person: %v", err)
		}
	}
	for _, c := range []Client{
		{Name: "Rajeev", PersonID: &sharma.ID},
		{Name: "Anita", PersonID: &sharma.ID},
		{Name: "Walk-in"},
	} {
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed client: %v", err)
		}
	}
	for i := 1; i <= 12; i++ {
		c := City{Code: fmt.Sprintf("C%02d", i), DisplayName: fmt.Sprintf("City %d", i), StateID: int64(i % 3)}
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed city: %v", err)
		}
	}

	catalog, err := NewCatalog(nil, Models()...)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewHandler(catalog, db, logger, model.Codec{Caster: cast.UTC})

	r := gin.New()
	NewModule(h, logger).RegisterRoutes(r.Group("/api/v1"))
	return &testEnv{router: r, db: db, logs: &logs}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, target, w.Body.String(), err)
	}
	return w, env
}

type pageBody struct {
	Items         []map[string]any `json:"items"`
	Count         int              `json:"count"`
	TotalCount    int64            `json:"total_count"`
	IsPrev        bool             `json:"is_prev"`
	IsNext        bool             `json:"is_next"`
	PrevPageStart *int             `json:"prev_page_start"`
	NextPageStart *int             `json:"next_page_start"`
	NextPageCount *int             `json:"next_page_count"`
}

func decodePage(t *testing.T, env envelope) pageBody {
	t.Helper()
	var p pageBody
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode page %s: %v", env.Data, err)
	}
	return p
}

func codes(items []map[string]any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, _ := it["code"].(string)
		out = append(out, s)
	}
	return out
}

func TestHandler_Types(t *testing.T) {
	env := setupRecordEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/records", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var types []TypeInfo
	if err := json.Unmarshal(resp.Data, &types); err != nil {
		t.Fatalf("decode types: %v", err)
	}
	if len(types) != 3 || types[0].Name != "cities" || types[1].Name != "clients" || types[2].Name != "persons" {
		t.Fatalf("types = %+v", types)
	}
	if got := strings.Join(types[2].Includes, ","); got != "clients" {
		t.Errorf("persons includes = %q, want clients", got)
	}
	if got := strings.Join(types[1].Includes, ","); got != "person" {
		t.Errorf("clients includes = %q, want person", got)
	}
}

func TestHandler_List_Pagination(t *testing.T) {
	env := setupRecordEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/records/cities?start=4&count=4&order_by=id:asc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	p := decodePage(t, resp)
	if got := strings.Join(codes(p.Items), ","); got != "C05,C06,C07,C08" {
		t.Errorf("codes = %s", got)
	}
	if p.Count != 4 || p.TotalCount != 12 {
		t.Errorf("count/total = %d/%d", p.Count, p.TotalCount)
	}
	if !p.IsPrev || p.PrevPageStart == nil || *p.PrevPageStart != 0 {
		t.Errorf("prev = %v %v", p.IsPrev, p.PrevPageStart)
	}
	if !p.IsNext || *p.NextPageStart != 8 || *p.NextPageCount != 4 {
		t.Errorf("next = %v %v %v", p.IsNext, p.NextPageStart, p.NextPageCount)
	}
}

func TestHandler_List_FiltersAndOrder(t *testing.T) {
	env := setupRecordEnv(t)

	params := url.Values{
		"filters":  {`[{"op":"equal","column":"state_id","value":0},{"or":[{"op":"range","column":"id","value":[10]},{"op":"in","column":"code","value":["C03"]}]}]`},
		"order_by": {`[{"id":"desc"}]`},
	}
	w, resp := env.do(t, http.MethodGet, "/api/v1/records/cities?"+params.Encode(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	p := decodePage(t, resp)
	if got := strings.Join(codes(p.Items), ","); got != "C12,C03" {
		t.Errorf("codes = %s", got)
	}
	if p.IsNext || p.IsPrev {
		t.Errorf("single page expected, got prev=%v next=%v", p.IsPrev, p.IsNext)
	}

	// Compact forms map to IN clauses and plain directions.
	w, resp = env.do(t, http.MethodGet, "/api/v1/records/cities?filters=code:C01,C02;state_id:1&order_by=code:desc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := strings.Join(codes(decodePage(t, resp).Items), ","); got != "C01" {
		t.Errorf("compact codes = %s", got)
	}
}

func TestHandler_List_Fields(t *testing.T) {
	env := setupRecordEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/records/cities?fields=code,nope&count=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	p := decodePage(t, resp)
	if len(p.Items) != 2 || !p.IsNext {
		t.Fatalf("page = %+v", p)
	}
	for _, it := range p.Items {
		if len(it) != 2 || it["id"] == nil || it["code"] == nil {
			t.Errorf("row = %v, want only id and code", it)
		}
	}

	w, resp = env.do(t, http.MethodGet, "/api/v1/records/cities?fields=code&order_by=code:desc&count=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := strings.Join(codes(decodePage(t, resp).Items), ","); got != "C12,C11" {
		t.Errorf("ordered field codes = %s, want C12,C11", got)
	}
}

func TestHandler_List_IncludeHasMany(t *testing.T) {
	env := setupRecordEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/records/persons?include=clients&order_by=id:asc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	p := decodePage(t, resp)
	if len(p.Items) != 2 {
		t.Fatalf("items = %v", p.Items)
	}
	sharma, _ := p.Items[0]["clients"].([]any)
	if len(sharma) != 2 {
		t.Fatalf("Sharma clients = %v", p.Items[0]["clients"])
	}
	if first, _ := sharma[0].(map[string]any); first["name"] != "Rajeev" {
		t.Errorf("first client = %v", sharma[0])
	}
	verma, ok := p.Items[1]["clients"].([]any)
	if !ok || len(verma) != 0 {
		t.Errorf("Verma clients = %#v, want empty list", p.Items[1]["clients"])
	}
}

func TestHandler_Get_IncludeBelongsTo(t *testing.T) {
	env := setupRecordEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/records/clients/1?include=person", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var client map[string]any
	if err := json.Unmarshal(resp.Data, &client); err != nil {
		t.Fatal(err)
	}
	person, ok := client["person"].(map[string]any)
	if !ok || person["name"] != "Sharma" || person["id"] != float64(1) {
		t.Errorf("client = %v", client)
	}

	// A client without a person has the field omitted.
	_, resp = env.do(t, http.MethodGet, "/api/v1/records/clients/3?include=person", "")
	client = nil
	if err := json.Unmarshal(resp.Data, &client); err != nil {
		t.Fatal(err)
	}
	if _, ok := client["person"]; ok {
		t.Errorf("walk-in client should have no person: %v", client)
	}
}

func TestHandler_Create(t *testing.T) {
	env := setupRecordEnv(t)

	body := `{"id": 99, "code": "KA-BLR", "display_name": "Bengaluru", "state_id": "7", "founded": "1537-01-01"}`
	w, resp := env.do(t, http.MethodPost, "/api/v1/records/cities", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var city map[string]any
	if err := json.Unmarshal(resp.Data, &city); err != nil {
		t.Fatal(err)
	}
	if city["id"] != float64(13) {
		t.Errorf("id = %v, want generated 13", city["id"])
	}
	if city["state_id"] != float64(7) || city["founded"] != "1537-01-01" {
		t.Errorf("city = %v", city)
	}
	created, _ := city["created_at"].(string)
	if _, err := time.Parse(time.RFC3339, created); err != nil || !strings.HasSuffix(created, "Z") {
		t.Errorf("created_at = %q, want UTC RFC 3339", created)
	}
	if !strings.Contains(env.logs.String(), "db session acquired") {
		t.Errorf("expected scoped session debug log, got:\n%s", env.logs.String())
	}

	var count int64
	env.db.Model(&City{}).Where("code = ?", "KA-BLR").Count(&count)
	if count != 1 {
		t.Errorf("stored rows = %d, want 1", count)
	}
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
		msg    string
	}{
		{"unknown type", http.MethodGet, "/api/v1/records/planets", "", http.StatusNotFound, "unknown record type 'planets'"},
		{"missing record", http.MethodGet, "/api/v1/records/cities/500", "", http.StatusNotFound, "not found"},
		{"bad id", http.MethodGet, "/api/v1/records/cities/abc", "", http.StatusBadRequest, "invalid id 'abc'"},
		{"zero id", http.MethodDelete, "/api/v1/records/cities/0", "", http.StatusBadRequest, "invalid id '0'"},
		{"bad filters json", http.MethodGet, "/api/v1/records/cities?filters=[{", "", http.StatusBadRequest, ""},
		{"bad order direction", http.MethodGet, "/api/v1/records/cities?order_by=code:up", "", http.StatusBadRequest, "Invalid order-by direction 'up'"},
		{"count too large", http.MethodGet, "/api/v1/records/cities?count=5000", "", http.StatusBadRequest, "validation error"},
		{"body not an object", http.MethodPost, "/api/v1/records/cities", `[1,2]`, http.StatusBadRequest, "request body must be a JSON object"},
		{"bad value", http.MethodPost, "/api/v1/records/cities", `{"code":"X","display_name":"X","state_id":"seven"}`, http.StatusBadRequest, ""},
		{"duplicate", http.MethodPost, "/api/v1/records/cities", `{"code":"C01","display_name":"Again","state_id":1}`, http.StatusConflict, "already exists"},
		{"delete missing", http.MethodDelete, "/api/v1/records/cities/500", "", http.StatusNotFound, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupRecordEnv(t)
			w, resp := env.do(t, tt.method, tt.target, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if resp.Code != tt.want {
				t.Errorf("envelope code = %d, want %d", resp.Code, tt.want)
			}
			if tt.msg != "" && resp.Message != tt.msg {
				t.Errorf("message = %q, want %q", resp.Message, tt.msg)
			}
		})
	}
}

func TestHandler_Delete(t *testing.T) {
	env := setupRecordEnv(t)

	w, resp := env.do(t, http.MethodDelete, "/api/v1/records/cities/3", "")
	if w.Code != http.StatusOK || resp.Code != 0 || resp.Message != "Success" {
		t.Fatalf("delete: status %d body %s", w.Code, w.Body.String())
	}
	if len(resp.Data) != 0 {
		t.Errorf("delete should carry no data, got %s", resp.Data)
	}

	w, _ = env.do(t, http.MethodGet, "/api/v1/records/cities/3", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d", w.Code)
	}
}
