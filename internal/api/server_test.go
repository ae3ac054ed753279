package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ordlab/ordpilot/pkg/llm"
	"github.com/ordlab/ordpilot/pkg/ord/ordrt"
	"github.com/ordlab/ordpilot/pkg/pipeline"
	"github.com/ordlab/ordpilot/pkg/repair"
	"github.com/ordlab/ordpilot/pkg/session"
	"github.com/ordlab/ordpilot/pkg/validate"
)

const validSource = `# -*- version: ord2 -*-
cell Inv:
    viewgen schematic:
        port vdd(.pos=(4, 20); .align=Orientation.North)
        port vss(.pos=(4, 0); .align=Orientation.South)
        port a(.pos=(0, 10); .align=Orientation.West)
        port y(.pos=(16, 10); .align=Orientation.East)

        Pmos m_p(.pos=(4, 12); .g -- a; .d -- y; .s -- vdd; .b -- vdd)
        Nmos m_n(.pos=(4, 4); .g -- a; .d -- y; .s -- vss; .b -- vss)`

// fakePipeline records the history it was called with and returns a canned
// result.
type fakePipeline struct {
	result  *pipeline.Result
	err     error
	history []llm.Message
}

func (f *fakePipeline) Run(_ context.Context, message string, history []llm.Message) (*pipeline.Result, error) {
	f.history = history
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type inprocValidator struct{}

func (inprocValidator) Validate(_ context.Context, source string, testParams map[string]string) validate.Outcome {
	return validate.Full(ordrt.New(), source, testParams, 0)
}

func (inprocValidator) FixSpacing(_ context.Context, source string, changes []repair.Change, testParams map[string]string) validate.Outcome {
	return validate.FixSpacing(ordrt.New(), source, changes, testParams, 0)
}

func newTestServer(p Pipeline) (*Server, *session.MemoryStore) {
	store := session.NewMemoryStore()
	return New(p, inprocValidator{}, store, nil), store
}

func postJSON(t *testing.T, handler http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(&fakePipeline{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if id := rec.Header().Get(RequestIDHeader); id == "" {
		t.Error("no request ID assigned")
	}
}

func TestGenerateCreatesSession(t *testing.T) {
	fake := &fakePipeline{result: &pipeline.Result{
		Intent:   pipeline.IntentGenerate,
		Response: "Validated circuit Inv.",
		Source:   validSource,
		SVG:      []byte("<svg/>"),
		Outcome:  validate.Outcome{Success: true},
	}}
	srv, store := newTestServer(fake)

	rec := postJSON(t, srv.Handler(), "/v1/generate",
		map[string]string{"message": "an inverter"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.SessionID == "" || resp.Source != validSource {
		t.Fatalf("response = %+v", resp)
	}
	if rec.Header().Get(SessionHeader) != resp.SessionID {
		t.Error("session header missing")
	}

	// The exchange and artifact were persisted.
	sess, err := store.Get(context.Background(), resp.SessionID)
	if err != nil || sess == nil {
		t.Fatalf("session = %v, %v", sess, err)
	}
	if len(sess.Messages) != 2 || sess.Source != validSource {
		t.Errorf("session = %+v", sess)
	}
}

func TestGenerateCarriesHistory(t *testing.T) {
	fake := &fakePipeline{result: &pipeline.Result{
		Intent:   pipeline.IntentQuestion,
		Response: "It copies a current.",
	}}
	srv, store := newTestServer(fake)

	sess := session.New(session.DefaultTTL)
	sess.Append("design a mirror", "done")
	if err := store.Set(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, srv.Handler(), "/v1/generate",
		map[string]string{"message": "what does it do?"},
		map[string]string{SessionHeader: sess.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if len(fake.history) != 2 || fake.history[0].Content != "design a mirror" {
		t.Errorf("history = %+v", fake.history)
	}
}

func TestGenerateUnknownSession(t *testing.T) {
	srv, _ := newTestServer(&fakePipeline{})
	rec := postJSON(t, srv.Handler(), "/v1/generate",
		map[string]string{"message": "hi"},
		map[string]string{SessionHeader: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
}

func TestGenerateRejectsBadBody(t *testing.T) {
	srv, _ := newTestServer(&fakePipeline{})
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	srv, _ := newTestServer(&fakePipeline{})

	rec := postJSON(t, srv.Handler(), "/v1/validate",
		map[string]any{"source": validSource}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var out validate.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || len(out.SVG) == 0 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestValidateRejectsEmptySource(t *testing.T) {
	srv, _ := newTestServer(&fakePipeline{})
	rec := postJSON(t, srv.Handler(), "/v1/validate",
		map[string]any{"source": ""}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
}

func TestValidateReportsStageFailure(t *testing.T) {
	srv, _ := newTestServer(&fakePipeline{})
	rec := postJSON(t, srv.Handler(), "/v1/validate",
		map[string]any{"source": "cell Broken"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var out validate.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Success || out.Stage != validate.StageParsing {
		t.Errorf("outcome = %+v", out)
	}
}
