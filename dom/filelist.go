package dom

import (
	"fmt"
	"slices"
	"time"
)

// File is the metadata of a file selected in an input element. Contents are
// not modelled.
type File struct {
	Name         string
	Type         string
	LastModified time.Time
	Size         int64
}

// FileList is the list of files of an input element.
type FileList struct {
	owner *Node
	files []*File
}

// Len returns the number of files.
func (l *FileList) Len() int { return len(l.files) }

// Item returns the i-th file, or nil.
func (l *FileList) Item(i int) *File {
	if i < 0 || i >= len(l.files) {
		return nil
	}
	return l.files[i]
}

// All returns the files in order.
func (l *FileList) All() []*File { return slices.Clone(l.files) }

// Push appends files and returns the new length.
func (l *FileList) Push(files ...*File) (int, error) {
	defer l.owner.doc.trace(l.owner, nested("files", "push", OpMethod), fileArgs(files)...)()
	l.files = append(l.files, files...)
	return len(l.files), nil
}

// Pop removes and returns the last file.
func (l *FileList) Pop() (*File, error) {
	defer l.owner.doc.trace(l.owner, nested("files", "pop", OpMethod))()
	if len(l.files) == 0 {
		return nil, nil
	}
	f := l.files[len(l.files)-1]
	l.files = l.files[:len(l.files)-1]
	return f, nil
}

// Splice removes deleteCount files at start, inserts items there and
// returns the removed files.
func (l *FileList) Splice(start, deleteCount int, items ...*File) ([]*File, error) {
	args := append([]any{start, deleteCount}, fileArgs(items)...)
	defer l.owner.doc.trace(l.owner, nested("files", "splice", OpMethod), args...)()
	if start < 0 || start > len(l.files) || deleteCount < 0 {
		return nil, fmt.Errorf("dom: splice at %d: %w", start, ErrIndexSize)
	}
	end := min(start+deleteCount, len(l.files))
	removed := slices.Clone(l.files[start:end])
	l.files = slices.Replace(l.files, start, end, items...)
	return removed, nil
}

func fileArgs(files []*File) []any {
	args := make([]any, len(files))
	for i, f := range files {
		args[i] = f
	}
	return args
}
