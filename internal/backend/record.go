package backend

import (
	"fmt"
	"strings"
	"time"
)

// FileRecord is the line-oriented representation of one stored file, used
// by the memory store and by disk overlays. Order of lines is significant
// and preserved exactly, including trailing empty lines.
type FileRecord struct {
	Lines      []string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// NewFileRecord creates a record from raw content.
func NewFileRecord(content string, now time.Time) *FileRecord {
	return &FileRecord{
		Lines:      SplitLines(content),
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// Replace swaps the full content, keeping CreatedAt and recomputing
// ModifiedAt. Records mutate only through Replace; edits go through
// Substitute on the rendered content followed by Replace.
func (r *FileRecord) Replace(content string, now time.Time) {
	r.Lines = SplitLines(content)
	r.ModifiedAt = now
}

// Content joins the stored lines back into the original text.
func (r *FileRecord) Content() string {
	return strings.Join(r.Lines, "\n")
}

// Size returns the content length in bytes.
func (r *FileRecord) Size() int64 {
	return int64(len(r.Content()))
}

// SplitLines splits content on newlines, preserving trailing empties.
func SplitLines(content string) []string {
	return strings.Split(content, "\n")
}

// RenderLines renders a window of lines as "<1-indexed number><TAB><text>",
// one per line. The offset is 0-indexed; an offset at or past the end
// yields an empty string. A non-positive limit selects DefaultReadLimit.
// When lines remain past the window a trailing "... (N more lines)" note
// is appended.
func RenderLines(lines []string, offset, limit int) string {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(lines) {
		return ""
	}
	end := offset + limit
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := offset; i < end; i++ {
		if i > offset {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\t%s", i+1, lines[i])
	}
	if remaining := len(lines) - end; remaining > 0 {
		fmt.Fprintf(&b, "\n... (%d more lines)", remaining)
	}
	return b.String()
}
