package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPixabayClient_Search(t *testing.T) {
	var gotKey, gotQ string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotQ = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hits":[
			{"id":7,"tags":"mri, brain, scan","largeImageURL":"https://img.example/7.jpg"}
		]}`))
	}))
	defer srv.Close()

	client := NewPixabayClient("pix-key", "healthcare")
	client.BaseURL = srv.URL
	client.Client = srv.Client()

	results, err := client.Search(context.Background(), "brain mri", 3)
	if err != nil {
		t.Fatal(err)
	}
	if gotKey != "pix-key" {
		t.Errorf("key param = %q", gotKey)
	}
	if gotQ != "brain mri" {
		t.Errorf("q param = %q", gotQ)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.ID != "7" {
		t.Errorf("id = %q", r.ID)
	}
	if r.Description != "mri" {
		t.Errorf("first tag should be the title, got %q", r.Description)
	}
	if r.URL != "https://img.example/7.jpg" {
		t.Errorf("url = %q", r.URL)
	}
	if r.Similarity != PlaceholderSimilarity {
		t.Errorf("similarity = %v", r.Similarity)
	}
	if r.Source != "pixabay" {
		t.Errorf("source = %q", r.Source)
	}
}

func TestPixabayClient_SearchDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewPixabayClient("k", "healthcare")
	client.BaseURL = srv.URL
	client.Client = srv.Client()

	if _, err := client.Search(context.Background(), "xray", 3); err == nil {
		t.Fatal("expected decode error")
	}
}
