// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

// AnnotationType is the kind of file reference an annotation carries.
type AnnotationType string

const (
	// AnnotationFileCitation marks a quote from a retrieved document.
	AnnotationFileCitation AnnotationType = "file_citation"
	// AnnotationFilePath marks a file generated by the assistant.
	AnnotationFilePath AnnotationType = "file_path"
)

// Annotation ties a span of assistant text to an external file.
type Annotation struct {
	Type   AnnotationType
	Text   string
	FileID string
	Start  int
	End    int
}

// Linker formats the link that replaces an annotated span.
type Linker interface {
	Link(fileID string) string
}

// LinkerFunc adapts a function to the Linker interface.
type LinkerFunc func(fileID string) string

// Link calls f(fileID).
func (f LinkerFunc) Link(fileID string) string {
	return f(fileID)
}

func (a Annotation) applies() bool {
	if a.Text == "" || a.FileID == "" {
		return false
	}
	return a.Type == AnnotationFileCitation || a.Type == AnnotationFilePath
}

// shadowed reports whether a later applicable annotation has the same
// source span as anns[i].
func shadowed(anns []Annotation, i int) bool {
	for _, later := range anns[i+1:] {
		if later.applies() && later.Text == anns[i].Text {
			return true
		}
	}
	return false
}
