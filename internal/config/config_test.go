package config

import (
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	os.Setenv("MONGODB_DATABASE", "docrev_test")
	os.Setenv("DOCUMENTS_DEFAULT_PAGE_SIZE", "25")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.MongoDB.Database != "docrev_test" {
		t.Fatalf("unexpected mongo config: %+v", cfg.MongoDB)
	}
	if cfg.Documents.PrimaryKeyField != "_id" {
		t.Fatalf("expected default id field, got %q", cfg.Documents.PrimaryKeyField)
	}
	if cfg.Documents.DefaultPageSize != 25 {
		t.Fatalf("expected page size override, got %d", cfg.Documents.DefaultPageSize)
	}
	if cfg.Documents.MaxPageSize != 50 {
		t.Fatalf("expected default max page size, got %d", cfg.Documents.MaxPageSize)
	}
}
