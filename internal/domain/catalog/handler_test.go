package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

func newHandlerFixture() (*Handler, *Service, *mockDirectory) {
	repo := newMockRepo()
	dir := newMockDirectory()
	svc := NewService(KindDesign, repo, dir)
	return NewHandler(svc), svc, dir
}

func doJSON(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func TestHandler_Create_MissingName(t *testing.T) {
	h, _, _ := newHandlerFixture()
	e := echo.New()
	req, rec := doJSON(http.MethodPost, "/api/v1/study-designs", `{"description":"x"}`)
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != false {
		t.Error("expected failure envelope")
	}
}

func TestHandler_Get_BadIDFormat(t *testing.T) {
	h, _, _ := newHandlerFixture()
	e := echo.New()
	req, rec := doJSON(http.MethodGet, "/api/v1/study-designs/zzz", "")
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("zzz")

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id must be 400, got %d", rec.Code)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, _ := newHandlerFixture()
	e := echo.New()
	id := oid.New().String()
	req, rec := doJSON(http.MethodGet, "/api/v1/study-designs/"+id, "")
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandler_ToggleStatus(t *testing.T) {
	h, svc, _ := newHandlerFixture()
	cl, _ := svc.Create(nil, CreateInput{Name: "Blind"})

	e := echo.New()
	req, rec := doJSON(http.MethodPatch, "/api/v1/study-designs/"+cl.ID.String()+"/toggle-status", "")
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cl.ID.String())

	if err := h.ToggleStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data Classifier `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Data.Active {
		t.Error("expected toggled-off record in response")
	}
}

func TestHandler_BulkAdd_Envelope(t *testing.T) {
	h, svc, dir := newHandlerFixture()
	s1 := dir.add("S1")
	s2 := dir.add("S2")
	cl, _ := svc.Create(nil, CreateInput{Name: "D", Studies: []string{s1.String()}})

	e := echo.New()
	req, rec := doJSON(http.MethodPost, "/api/v1/study-designs/"+cl.ID.String()+"/studies/bulk",
		`{"studies":["`+s1.String()+`","`+s2.String()+`"]}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cl.ID.String())

	if err := h.BulkAdd(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Success    bool `json:"success"`
		AddedCount int  `json:"addedCount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Success || body.AddedCount != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestHandler_BulkAdd_MissingReported(t *testing.T) {
	h, svc, _ := newHandlerFixture()
	cl, _ := svc.Create(nil, CreateInput{Name: "D"})
	ghost := oid.New().String()

	e := echo.New()
	req, rec := doJSON(http.MethodPost, "/api/v1/study-designs/"+cl.ID.String()+"/studies/bulk",
		`{"studies":["`+ghost+`"]}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cl.ID.String())

	if err := h.BulkAdd(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Missing []string `json:"missing"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Missing) != 1 || body.Missing[0] != ghost {
		t.Errorf("missing = %v", body.Missing)
	}
}

func TestHandler_RemoveMember_Absent404(t *testing.T) {
	h, svc, dir := newHandlerFixture()
	dir.add("S1")
	cl, _ := svc.Create(nil, CreateInput{Name: "D"})
	other := oid.New().String()

	e := echo.New()
	req, rec := doJSON(http.MethodDelete, "/api/v1/study-designs/"+cl.ID.String()+"/studies/"+other, "")
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "studyId")
	c.SetParamValues(cl.ID.String(), other)

	if err := h.RemoveMember(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandler_List_IsActiveFilter(t *testing.T) {
	h, svc, _ := newHandlerFixture()
	svc.Create(nil, CreateInput{Name: "On"})
	off, _ := svc.Create(nil, CreateInput{Name: "Off"})
	svc.ToggleStatus(nil, off.ID)

	e := echo.New()
	req, rec := doJSON(http.MethodGet, "/api/v1/study-designs?isActive=false", "")
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 {
		t.Errorf("total = %d", body.Total)
	}
}

func TestHandler_SyncRelationships(t *testing.T) {
	h, svc, dir := newHandlerFixture()
	s1 := dir.add("S1")
	svc.Create(nil, CreateInput{Name: "D", Studies: []string{s1.String()}})

	e := echo.New()
	req, rec := doJSON(http.MethodPost, "/api/v1/study-designs/sync-relationships", "")
	c := e.NewContext(req, rec)

	if err := h.SyncRelationships(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data SyncReport `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Data.Checked != 1 {
		t.Errorf("report = %+v", body.Data)
	}
}
