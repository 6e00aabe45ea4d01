package payload_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/firasghr/HeyteaDIY/logger"
	"github.com/firasghr/HeyteaDIY/payload"
)

var loginOK = []byte(`{
	"code": 0,
	"message": "ok",
	"data": {
		"token": "abc",
		"user_main_id": 1234567890123456789,
		"tags": ["a"],
		"vip": true,
		"nickname": null
	}
}`)

func TestExtract(t *testing.T) {
	s, err := payload.Extract(loginOK)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := map[string]string{
		"code":              "number",
		"message":           "string",
		"data":              "object",
		"data.token":        "string",
		"data.user_main_id": "number",
		"data.tags":         "array",
		"data.vip":          "bool",
		"data.nickname":     "null",
	}
	if len(s) != len(want) {
		t.Fatalf("got %d fields %v, want %d", len(s), s.Fields(), len(want))
	}
	for k, v := range want {
		if s[k] != v {
			t.Errorf("%s: got %q, want %q", k, s[k], v)
		}
	}
}

func TestExtract_Rejects(t *testing.T) {
	for _, body := range []string{"not json", "[1,2]", `"str"`} {
		if _, err := payload.Extract([]byte(body)); err == nil {
			t.Errorf("Extract(%q): expected error", body)
		}
	}
}

func TestObserve_FirstResponseIsBaseline(t *testing.T) {
	w := payload.NewWatcher(nil)
	if got := w.Observe("login", loginOK); len(got) != 0 {
		t.Errorf("first observation reported %v", got)
	}
	if w.Baseline("login") == nil {
		t.Fatal("baseline not recorded")
	}
	if got := w.Observe("login", loginOK); len(got) != 0 {
		t.Errorf("identical response reported %v", got)
	}
}

func TestObserve_DetectsDrift(t *testing.T) {
	w := payload.NewWatcher(nil)
	w.Observe("login", loginOK)

	drifted := []byte(`{
		"code": 0,
		"message": "ok",
		"data": {
			"accessToken": "abc",
			"user_main_id": "1234567890123456789",
			"tags": ["a"],
			"vip": true,
			"nickname": "bob"
		}
	}`)
	got := w.Observe("login", drifted)
	want := []payload.Mismatch{
		{Kind: payload.MismatchKindAdded, Field: "data.accessToken", CurrentType: "string"},
		{Kind: payload.MismatchKindMissing, Field: "data.token", BaselineType: "string"},
		{Kind: payload.MismatchKindTypeChange, Field: "data.user_main_id", BaselineType: "number", CurrentType: "string"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestObserve_EndpointsAreIndependent(t *testing.T) {
	w := payload.NewWatcher(nil)
	w.Observe("login", loginOK)
	if got := w.Observe("sms", []byte(`{"code":0}`)); len(got) != 0 {
		t.Errorf("new endpoint should learn, got %v", got)
	}
	if w.Baseline("upload") != nil {
		t.Error("unexpected baseline for unseen endpoint")
	}
}

func TestObserve_IgnoresNonObjects(t *testing.T) {
	w := payload.NewWatcher(nil)
	w.Observe("api", []byte("<html>bad gateway</html>"))
	if w.Baseline("api") != nil {
		t.Error("non-JSON body must not become a baseline")
	}
}

func TestForget(t *testing.T) {
	w := payload.NewWatcher(nil)
	w.Observe("sms", []byte(`{"a":1}`))
	w.Forget("sms")
	if got := w.Observe("sms", []byte(`{"b":1}`)); len(got) != 0 {
		t.Errorf("after Forget the next body should be the baseline, got %v", got)
	}
}

func TestObserve_LogsDrift(t *testing.T) {
	var buf bytes.Buffer
	w := payload.NewWatcher(logger.NewWithWriter(&buf, logger.LevelInfo))
	w.Observe("sms", []byte(`{"code":0}`))
	w.Observe("sms", []byte(`{"code":"0"}`))

	out := buf.String()
	if !strings.Contains(out, "schema.drift") || !strings.Contains(out, `"field":"code"`) {
		t.Errorf("drift not logged: %q", out)
	}
}

func TestFormat(t *testing.T) {
	if payload.Format(nil) != "" {
		t.Error("Format(nil) should be empty")
	}
	s := payload.Format([]payload.Mismatch{
		{Kind: payload.MismatchKindMissing, Field: "a", BaselineType: "string"},
		{Kind: payload.MismatchKindAdded, Field: "b", CurrentType: "number"},
	})
	if strings.Count(s, "\n") != 1 {
		t.Errorf("want two lines, got %q", s)
	}
}

func TestObserve_Concurrent(t *testing.T) {
	w := payload.NewWatcher(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Observe("login", loginOK)
		}()
	}
	wg.Wait()
	if w.Baseline("login") == nil {
		t.Error("baseline missing after concurrent observations")
	}
}
