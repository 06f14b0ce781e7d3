package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUploadPutsObjectAndReturnsPublicURL(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "https://cdn.example", "secret", 0)
	publicURL, err := c.Upload(context.Background(), "social-images/u1/pic.png", "image/png", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if publicURL != "https://cdn.example/social-images/u1/pic.png" {
		t.Fatalf("неожиданный публичный URL: %s", publicURL)
	}
	if gotPath != "/objects/social-images/u1/pic.png" {
		t.Fatalf("слэши ключа не должны экранироваться: %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("нет токена в запросе: %q", gotAuth)
	}
	if gotType != "image/png" {
		t.Fatalf("тип контента потерян: %q", gotType)
	}
	if len(gotBody) != 3 {
		t.Fatalf("тело не дошло: %v", gotBody)
	}
}

func TestUploadNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "https://cdn.example", "", 0)
	if _, err := c.Upload(context.Background(), "k", "image/png", nil); err == nil {
		t.Fatalf("статус 403 должен быть ошибкой")
	}
}

func TestUploadEmptyKeyRejected(t *testing.T) {
	c := NewClient("https://storage.example", "https://cdn.example", "", 0)
	if _, err := c.Upload(context.Background(), "", "image/png", nil); err == nil {
		t.Fatalf("пустой ключ должен отклоняться до сети")
	}
}

func TestIsInternalURL(t *testing.T) {
	c := NewClient("https://storage.example", "https://cdn.example", "", 0)
	if !c.IsInternalURL("https://cdn.example/social-images/u1/a.png") {
		t.Fatalf("ссылка в хранилище должна распознаваться")
	}
	if c.IsInternalURL("https://cdn.example.evil.com/a.png") {
		t.Fatalf("чужой хост не должен проходить проверку")
	}
	if c.IsInternalURL("https://other.example/a.png") {
		t.Fatalf("внешняя ссылка не должна проходить проверку")
	}
}
