package staging

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestArea_EnsureIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "staging", "k2_viral")
	a := New(root)

	if a.Exists() {
		t.Fatal("area should not exist yet")
	}
	if err := a.Ensure(); err != nil {
		t.Fatalf("first Ensure failed: %v", err)
	}
	writeFile(t, filepath.Join(root, "refseq", "viral", "GCF_1", "a_genomic.fna.gz"), []byte("x"))

	if err := a.Ensure(); err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if !a.Exists() {
		t.Error("area should exist after Ensure")
	}
	genomes, err := a.Genomes()
	if err != nil {
		t.Fatal(err)
	}
	if len(genomes) != 1 {
		t.Errorf("existing content should survive Ensure, got %v", genomes)
	}
}

func TestArea_Genomes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "refseq", "viral", "GCF_2", "b_genomic.fna.gz"), nil)
	writeFile(t, filepath.Join(root, "refseq", "viral", "GCF_1", "a_genomic.fna"), nil)
	writeFile(t, filepath.Join(root, "refseq", "viral", "GCF_1", "MD5SUMS"), nil)
	writeFile(t, filepath.Join(root, "refseq", "viral", "GCF_1", ".a_genomic.fna.123.tmp"), nil)
	writeFile(t, filepath.Join(root, "other", "c.fasta"), nil)

	got, err := New(root).Genomes()
	if err != nil {
		t.Fatalf("Genomes failed: %v", err)
	}
	want := []string{
		filepath.Join(root, "other", "c.fasta"),
		filepath.Join(root, "refseq", "viral", "GCF_1", "a_genomic.fna"),
		filepath.Join(root, "refseq", "viral", "GCF_2", "b_genomic.fna.gz"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Genomes() = %v, want %v", got, want)
	}
}

func TestArea_GenomesMissingRoot(t *testing.T) {
	got, err := New(filepath.Join(t.TempDir(), "absent")).Genomes()
	if err != nil {
		t.Fatalf("missing root should not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no genomes, got %v", got)
	}
}

func TestArea_Remove(t *testing.T) {
	root := filepath.Join(t.TempDir(), "staging")
	writeFile(t, filepath.Join(root, "x.fna"), nil)

	a := New(root)
	if err := a.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if a.Exists() {
		t.Error("area should be gone after Remove")
	}
}

func TestIsGenome(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"GCF_000001405.40_GRCh38.p14_genomic.fna.gz", true},
		{"x.fna", true},
		{"X.FASTA", true},
		{"x.fa.gz", true},
		{"MD5SUMS", false},
		{"assembly_report.txt", false},
		{".x.fna.1234.tmp", false},
		{".hidden.fna", false},
	}
	for _, tt := range tests {
		if got := IsGenome(tt.path); got != tt.want {
			t.Errorf("IsGenome(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
