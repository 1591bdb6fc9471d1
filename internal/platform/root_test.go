package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	// /tmp/
	//   site/ (.vellum)
	//     subdir/
	//       nested/
	//   plain/ (.metadata)
	//   empty/

	baseDir := t.TempDir()
	siteDir := filepath.Join(baseDir, "site")
	subDir := filepath.Join(siteDir, "subdir")
	nestedDir := filepath.Join(subDir, "nested")
	plainDir := filepath.Join(baseDir, "plain")
	emptyDir := filepath.Join(baseDir, "empty")

	for _, dir := range []string{nestedDir, plainDir, emptyDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(siteDir, ".vellum"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(plainDir, ".metadata"), []byte("format: root\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   bool
	}{
		{name: "Start at Root", startPath: siteDir, wantRoot: siteDir},
		{name: "Start in Subdir", startPath: subDir, wantRoot: siteDir},
		{name: "Start Nested Deeply", startPath: nestedDir, wantRoot: siteDir},
		{name: "Root Metadata Marker", startPath: plainDir, wantRoot: plainDir},
		{name: "No Root Found", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("FindRoot() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != "" && filepath.Clean(got) != filepath.Clean(tt.wantRoot) {
				t.Errorf("FindRoot() = %v, want %v", got, tt.wantRoot)
			}
		})
	}
}
