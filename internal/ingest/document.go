package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/yanivmizrachiy/luztedi/internal/textnorm"
)

// ErrUnsupportedDocument is returned for file types DecodeDocument cannot read.
var ErrUnsupportedDocument = errors.New("unsupported document type")

// Document is the text content of a Word or HTML document: table rows as
// cell text, plus every paragraph as a line.
type Document struct {
	Rows  [][]string
	Lines []string
}

// DecodeDocument reads a .docx or .html/.htm file.
func DecodeDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return DecodeDOCX(bytes.NewReader(data), int64(len(data)))
	case ".html", ".htm":
		return DecodeHTML(bytes.NewReader(data))
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedDocument, filepath.Ext(path))
	}
}

// DecodeDOCX walks word/document.xml of a .docx package.
func DecodeDOCX(r io.ReaderAt, size int64) (Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Document{}, fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return Document{}, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return decodeWordXML(rc)
	}
	return Document{}, errors.New("docx has no word/document.xml")
}

// decodeWordXML streams WordprocessingML. Only the outermost tables become
// rows; text of nested tables folds into the enclosing cell.
func decodeWordXML(r io.Reader) (Document, error) {
	var (
		doc      Document
		tblDepth int
		row      []string
		cell     strings.Builder
		para     strings.Builder
		inText   bool
	)
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Document{}, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				if tblDepth == 1 {
					cell.Reset()
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte(' ')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth--
			case "tr":
				if tblDepth == 1 && len(row) > 0 {
					doc.Rows = append(doc.Rows, row)
				}
			case "tc":
				if tblDepth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "p":
				text := para.String()
				for _, l := range strings.Split(text, "\n") {
					if l = textnorm.Clean(l); l != "" {
						doc.Lines = append(doc.Lines, l)
					}
				}
				if tblDepth > 0 {
					if cell.Len() > 0 {
						cell.WriteByte('\n')
					}
					cell.WriteString(textnorm.Clean(text))
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return doc, nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "section": true, "article": true, "td": true, "th": true,
}

// DecodeHTML reads table rows from every tr (its td/th cells) and lines from
// the block structure of the body.
func DecodeHTML(r io.Reader) (Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return Document{}, fmt.Errorf("parse html: %w", err)
	}

	var doc Document
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					row = append(row, cellText(c))
				}
			}
			if len(row) > 0 {
				doc.Rows = append(doc.Rows, row)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	var b strings.Builder
	renderText(&b, root)
	for _, l := range strings.Split(b.String(), "\n") {
		if l = textnorm.Clean(l); l != "" {
			doc.Lines = append(doc.Lines, l)
		}
	}
	return doc, nil
}

func cellText(n *html.Node) string {
	var b strings.Builder
	renderText(&b, n)
	var lines []string
	for _, l := range strings.Split(b.String(), "\n") {
		if l = textnorm.Clean(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "head":
			return
		case "br":
			b.WriteByte('\n')
			return
		}
		if blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte('\n')
	}
}
