package hasher

import (
	"testing"

	"github.com/spf13/afero"
)

func writeTestFile(t *testing.T, fs afero.Fs, path string, content []byte) {
	t.Helper()
	if err := afero.WriteFile(fs, path, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func TestSum_SHA256(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "/data/test.txt", []byte("hello"))

	h, err := New(fs, "sha256")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := h.Sum("/data/test.txt")
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}

	// sha256("hello")
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("Sum() = %s, want %s", got, want)
	}
}

func TestSum_DefaultAlgorithm(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "/data/test.txt", []byte("hello"))

	h, err := New(fs, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if h.Algorithm() != "sha256" {
		t.Errorf("Algorithm() = %s, want sha256", h.Algorithm())
	}
}

func TestSum_Consistent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "/data/test.txt", []byte("test content for hashing"))

	for _, algorithm := range []string{"sha256", "md5", "xxhash"} {
		h, err := New(fs, algorithm)
		if err != nil {
			t.Fatalf("New(%s) error = %v", algorithm, err)
		}

		hash1, err := h.Sum("/data/test.txt")
		if err != nil {
			t.Fatalf("Sum() error = %v", err)
		}
		hash2, err := h.Sum("/data/test.txt")
		if err != nil {
			t.Fatalf("Sum() second call error = %v", err)
		}

		if hash1 == "" {
			t.Errorf("Expected non-empty hash for %s", algorithm)
		}
		if hash1 != hash2 {
			t.Errorf("Hash should be consistent for same file with %s", algorithm)
		}
	}
}

func TestSum_DifferentContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "/data/file1.txt", []byte("content1"))
	writeTestFile(t, fs, "/data/file2.txt", []byte("content2"))

	h, err := New(fs, "sha256")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hash1, err := h.Sum("/data/file1.txt")
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}
	hash2, err := h.Sum("/data/file2.txt")
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("Different content should produce different hashes")
	}
}

func TestSum_NonExistentFile(t *testing.T) {
	h, err := New(afero.NewMemMapFs(), "sha256")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := h.Sum("/non/existent/file.txt"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestNew_UnsupportedAlgorithm(t *testing.T) {
	if _, err := New(afero.NewMemMapFs(), "crc32"); err == nil {
		t.Error("Expected error for unsupported algorithm")
	}
}

func TestSum_LargeFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	// 跨多个读取块的文件
	data := make([]byte, 3*chunkSize+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	writeTestFile(t, fs, "/data/large.bin", data)

	h, err := New(fs, "sha256")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hash, err := h.Sum("/data/large.bin")
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("Expected 64 hex chars for sha256, got %d", len(hash))
	}
}
