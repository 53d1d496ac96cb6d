package uploads

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"deligma/pkg/responses"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

type memorySaver struct {
	saved map[string][]byte
}

func (m *memorySaver) Save(_ context.Context, name string, src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[name] = data
	return nil
}

func multipartRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile(FieldName, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(content)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/muro-fama", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func run(saver Saver, maxBytes int64, req *http.Request) (*httptest.ResponseRecorder, string, bool) {
	var (
		got    string
		called bool
	)
	h := Image(saver, maxBytes, responses.NewWriter(nil, false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got = FilenameFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got, called
}

func TestImageStoresValidUpload(t *testing.T) {
	saver := &memorySaver{}
	req := multipartRequest(t, "Foto.PNG", pngBytes, map[string]string{"nombre": "Ana"})

	rec, name, called := run(saver, 5<<20, req)

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected pass-through got %d", rec.Code)
	}
	if !regexp.MustCompile(`^muro-\d+-[0-9a-f-]{36}\.png$`).MatchString(name) {
		t.Fatalf("unexpected filename %q", name)
	}
	if !bytes.Equal(saver.saved[name], pngBytes) {
		t.Fatal("stored content differs from upload")
	}
	if req.PostForm.Get("nombre") != "Ana" {
		t.Fatal("expected form fields to remain available")
	}
}

func TestImageWithoutFilePassesThrough(t *testing.T) {
	saver := &memorySaver{}
	rec, name, called := run(saver, 5<<20, multipartRequest(t, "", nil, map[string]string{"nombre": "Ana"}))

	if rec.Code != http.StatusOK || !called || name != "" {
		t.Fatalf("unexpected result code=%d called=%v name=%q", rec.Code, called, name)
	}
}

func TestImageRejectsDisguisedFile(t *testing.T) {
	saver := &memorySaver{}
	rec, _, called := run(saver, 5<<20, multipartRequest(t, "evil.png", []byte("#!/bin/sh\necho hi\n"), nil))

	if rec.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if len(saver.saved) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestImageRejectsExtension(t *testing.T) {
	rec, _, called := run(&memorySaver{}, 5<<20, multipartRequest(t, "photo.bmp", pngBytes, nil))
	if rec.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestImageRejectsOversizedFile(t *testing.T) {
	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{1}, 2048)...)
	rec, _, called := run(&memorySaver{}, 1024, multipartRequest(t, "big.png", big, nil))
	if rec.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestImageIgnoresJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nombre":"Ana"}`))
	req.Header.Set("Content-Type", "application/json")

	rec, name, called := run(&memorySaver{}, 5<<20, req)
	if rec.Code != http.StatusOK || !called || name != "" {
		t.Fatalf("unexpected result code=%d", rec.Code)
	}
}

func TestGenerateName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	a, b := GenerateName(now, ".jpg"), GenerateName(now, ".jpg")
	if a == b {
		t.Fatal("names must not collide within the same millisecond")
	}
	if !strings.HasPrefix(a, "muro-1700000000123-") || !strings.HasSuffix(a, ".jpg") {
		t.Fatalf("unexpected name %q", a)
	}
}
