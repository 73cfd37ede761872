package hiveagent

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// ChatFile is a file attached to a chat message. It is either a LocalPath,
// which the library opens and always closes, or an OpenStream, which the
// library reads but never closes.
type ChatFile interface {
	open() (formFile, error)
}

// LocalPath is a file on the local filesystem
type LocalPath string

// OpenStream is an already open upload owned by the caller
type OpenStream struct {
	Name        string
	Reader      io.Reader
	ContentType string
}

type formField struct {
	name  string
	value string
}

type formFile struct {
	filename    string
	contentType string
	reader      io.Reader
	closer      io.Closer // nil for caller owned streams
}

// openLocalFile is swapped in tests to observe closing
var openLocalFile = func(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

func (p LocalPath) open() (formFile, error) {
	f, err := openLocalFile(string(p))
	if err != nil {
		return formFile{}, err
	}
	return formFile{
		filename:    filepath.Base(string(p)),
		contentType: guessContentType(string(p)),
		reader:      f,
		closer:      f,
	}, nil
}

func (s OpenStream) open() (formFile, error) {
	if s.Reader == nil {
		return formFile{}, fmt.Errorf("stream %q has no reader", s.Name)
	}
	contentType := s.ContentType
	if contentType == "" {
		contentType = guessContentType(s.Name)
	}
	return formFile{filename: s.Name, contentType: contentType, reader: s.Reader}, nil
}

// guessContentType is best effort, based on the file extension only
func guessContentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return defaultChatContentType
}

// openChatFiles opens every attachment. The returned release func closes the
// files opened here and must always be called, also when err is non-nil.
func openChatFiles(files []ChatFile) ([]formFile, func(), error) {
	opened := make([]formFile, 0, len(files))
	release := func() {
		for _, f := range opened {
			if f.closer != nil {
				_ = f.closer.Close()
			}
		}
	}
	for _, file := range files {
		ff, err := file.open()
		if err != nil {
			return nil, release, &ValidationError{Field: "files", Reason: "cannot open attachment", Err: err}
		}
		opened = append(opened, ff)
	}
	return opened, release, nil
}

// openLocalFiles opens paths for upload with every part typed as
// multipart/form-data.
func openLocalFiles(paths []string) ([]formFile, func(), error) {
	files := make([]ChatFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, LocalPath(p))
	}
	opened, release, err := openChatFiles(files)
	for i := range opened {
		opened[i].contentType = uploadPartContentType
	}
	return opened, release, err
}

// buildMultipart writes fields first, then one "files" part per file.
func buildMultipart(fields []formField, files []formFile) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	for _, field := range fields {
		if err := w.WriteField(field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("failed to write %s field: %w", field.name, err)
		}
	}

	for _, file := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			defaultFileFieldName, escapeQuotes(file.filename)))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create multipart part for %s: %w", file.filename, err)
		}
		if _, err := io.Copy(part, file.reader); err != nil {
			return nil, "", fmt.Errorf("failed to copy %s into multipart: %w", file.filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &body, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
