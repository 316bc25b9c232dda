// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"strings"
	"sync"
	"testing"
)

func TestDeriveName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"file-ABC", "file-ABC.pdf"},
		{"report.docx", "report.docx"},
		{"📄 Smoke Exposure", "Smoke Exposure.pdf"},
		{"📄  notes.txt", "notes.txt"},
		{"📄x", "📄x.pdf"},
		{"  spaced  ", "spaced.pdf"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DeriveName(tt.in); got != tt.want {
			t.Errorf("DeriveName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShortName(t *testing.T) {
	long := "Prevalence and Predictors of Sleep and Trauma Symptoms in Wildfire Survivors.pdf"

	got := ShortName(long, 40)
	if got != long[:37]+"..." {
		t.Errorf("ShortName = %q, want %q", got, long[:37]+"...")
	}

	if got := ShortName("short.pdf", 40); got != "short.pdf" {
		t.Errorf("ShortName(short) = %q", got)
	}
	if got := ShortName(strings.Repeat("a", 40), 0); got != strings.Repeat("a", 40) {
		t.Errorf("ShortName at default width should not cut, got %q", got)
	}
}

func TestCatalog_NameFallsBackToDerived(t *testing.T) {
	c := NewCatalog(map[string]string{"file-1": "Known.pdf", "": "ignored", "file-2": "  "})

	if got := c.Name("file-1"); got != "Known.pdf" {
		t.Errorf("Name(file-1) = %q", got)
	}
	if got := c.Name("file-2"); got != "file-2.pdf" {
		t.Errorf("Name(file-2) = %q, want derived", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCatalog_NilIsEmpty(t *testing.T) {
	var c *Catalog
	if _, ok := c.Lookup("file-1"); ok {
		t.Error("nil catalog should not find names")
	}
	if got := c.Name("file-1"); got != "file-1.pdf" {
		t.Errorf("Name = %q", got)
	}
	c.Learn("file-1", "Report.pdf")
	if got := c.Len(); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}

func TestCatalog_Learn(t *testing.T) {
	c := NewCatalog(map[string]string{"file-1": "Old.pdf"})

	c.Learn("file-1", " New.pdf ")
	c.Learn("file-2", "Second.pdf")
	c.Learn("file-3", "  ")

	if got := c.Name("file-1"); got != "New.pdf" {
		t.Errorf("Name(file-1) = %q, want %q", got, "New.pdf")
	}
	if got := c.Name("file-2"); got != "Second.pdf" {
		t.Errorf("Name(file-2) = %q, want %q", got, "Second.pdf")
	}
	if got := c.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
}

func TestCatalog_ReplaceCopiesInput(t *testing.T) {
	names := map[string]string{"file-1": "A.pdf"}
	c := NewCatalog(names)
	names["file-1"] = "B.pdf"

	if got := c.Name("file-1"); got != "A.pdf" {
		t.Errorf("Name = %q, catalog must copy its input", got)
	}

	c.Replace(map[string]string{"file-2": "C.pdf"})
	if _, ok := c.Lookup("file-1"); ok {
		t.Error("Replace should drop old names")
	}
	c.Learn("file-3", "D.pdf")
	if got := c.Name("file-3"); got != "D.pdf" {
		t.Errorf("Learn: Name = %q", got)
	}
}

func TestCatalog_NormalizesNames(t *testing.T) {
	c := NewCatalog(map[string]string{"file-1": "Re\u0301sume\u0301.pdf"})
	if got := c.Name("file-1"); got != "R\u00e9sum\u00e9.pdf" {
		t.Errorf("Name = %q, want NFC form", got)
	}
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	c := NewCatalog(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Replace(map[string]string{"file-1": "A.pdf"})
			c.Learn("file-2", "B.pdf")
		}()
		go func() {
			defer wg.Done()
			_ = c.Name("file-1")
			_ = c.Len()
		}()
	}
	wg.Wait()
}
