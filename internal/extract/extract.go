// Package extract turns stored study documents into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"medstudy-backend/internal/shared/storage/object"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeCSV  = "text/csv"
)

// Kind is the extraction strategy for a file.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindCSV  Kind = "csv"
)

// ErrUnsupportedType is returned for files without an extraction strategy.
var ErrUnsupportedType = errors.New("unsupported file type")

// Result is the extracted text plus basic metadata. PageCount is zero when
// the format has no notion of pages.
type Result struct {
	Text      string
	WordCount int
	PageCount int
}

// KindOf maps an extension, file name or MIME type to an extraction strategy.
func KindOf(hint string) (Kind, bool) {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(hint, ";")[0]))
	if ext := filepath.Ext(clean); ext != "" && !strings.Contains(clean, "/") {
		clean = ext
	}
	clean = strings.TrimPrefix(clean, ".")
	switch clean {
	case "pdf", MimePDF:
		return KindPDF, true
	case "docx", MimeDOCX:
		return KindDOCX, true
	case "csv", MimeCSV, "application/csv":
		return KindCSV, true
	default:
		return "", false
	}
}

// MimeFor returns the canonical MIME type for a kind.
func MimeFor(kind Kind) string {
	switch kind {
	case KindPDF:
		return MimePDF
	case KindDOCX:
		return MimeDOCX
	case KindCSV:
		return MimeCSV
	default:
		return "application/octet-stream"
	}
}

// Extractor reads documents from an object store.
type Extractor struct {
	Store object.ObjectStore
}

// Extract loads storageKey and extracts it using the strategy named by typeHint.
func (e *Extractor) Extract(ctx context.Context, storageKey, typeHint string) (Result, error) {
	kind, ok := KindOf(typeHint)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, typeHint)
	}
	if e.Store == nil {
		return Result{}, errors.New("object store not configured")
	}

	body, err := e.Store.Open(ctx, storageKey)
	if err != nil {
		return Result{}, fmt.Errorf("extract key=%s: %w", storageKey, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return Result{}, fmt.Errorf("extract key=%s: read: %w", storageKey, err)
	}
	res, err := FromBytes(ctx, raw, kind)
	if err != nil {
		return Result{}, fmt.Errorf("extract key=%s kind=%s: %w", storageKey, kind, err)
	}
	return res, nil
}

// FromBytes extracts an in-memory payload.
func FromBytes(ctx context.Context, data []byte, kind Kind) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	var (
		res Result
		err error
	)
	switch kind {
	case KindPDF:
		res, err = extractPDF(data)
	case KindDOCX:
		res.Text, err = extractDOCX(data)
	case KindCSV:
		res.Text, err = describeCSV(data)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}
	if err != nil {
		return Result{}, err
	}
	res.WordCount = len(strings.Fields(res.Text))
	return res, nil
}

func extractPDF(data []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return Result{}, fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Result{}, err
	}
	return Result{Text: buf.String(), PageCount: reader.NumPage()}, nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return paragraphText(rc)
}

// paragraphText walks WordprocessingML and keeps run text, one line per paragraph.
func paragraphText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var buf strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteString("\t")
			case "br":
				buf.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String()), nil
}
