package library

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message/mail"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"skim/internal/gmail"
)

// extractPDF pulls plain text out of an uploaded PDF.
func extractPDF(data []byte) (*extractedUpload, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF text: %w", err)
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF text: %w", err)
	}
	if len(bytes.TrimSpace(text)) == 0 {
		return nil, fmt.Errorf("PDF contains no extractable text")
	}
	return &extractedUpload{Content: "<pre>" + string(text) + "</pre>"}, nil
}

// docx XML: text lives in w:t elements, paragraphs end at w:p.
func extractDOCX(data []byte) (*extractedUpload, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX archive: %w", err)
	}

	var document *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			document = f
			break
		}
	}
	if document == nil {
		return nil, fmt.Errorf("DOCX has no word/document.xml")
	}

	rc, err := document.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX document: %w", err)
	}
	defer func() { _ = rc.Close() }()

	var b strings.Builder
	var paragraph strings.Builder
	decoder := xml.NewDecoder(rc)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse DOCX XML: %w", err)
		}
		switch t := token.(type) {
		case xml.CharData:
			paragraph.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" {
				if text := strings.TrimSpace(paragraph.String()); text != "" {
					b.WriteString("<p>")
					b.WriteString(text)
					b.WriteString("</p>\n")
				}
				paragraph.Reset()
			}
		}
	}
	if tail := strings.TrimSpace(paragraph.String()); tail != "" {
		b.WriteString("<p>" + tail + "</p>\n")
	}

	content := strings.TrimSpace(b.String())
	if content == "" {
		return nil, fmt.Errorf("DOCX contains no text")
	}
	return &extractedUpload{Content: content}, nil
}

// extractMarkdown keeps the markdown as-is and takes the first heading as
// the title.
func extractMarkdown(data []byte) (*extractedUpload, error) {
	content := string(data)
	title := ""
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			break
		}
	}
	return &extractedUpload{Title: title, Content: content}, nil
}

func extractHTMLUpload(data []byte) (*extractedUpload, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML upload: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style").Remove()
	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		body = string(data)
	}
	return &extractedUpload{Title: title, Content: strings.TrimSpace(body)}, nil
}

// extractEML parses an RFC 822 message, preferring the HTML body and
// reusing the newsletter cleanup. Charset errors fall back to utf-8 and
// then latin-1.
func extractEML(data []byte) (*extractedUpload, error) {
	reader, err := mail.CreateReader(bytes.NewReader(data))
	if err != nil {
		// Some exports carry charsets the MIME layer refuses; retry after
		// transcoding from latin-1.
		decoded, decErr := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if decErr != nil {
			return nil, fmt.Errorf("failed to parse EML: %w", err)
		}
		reader, err = mail.CreateReader(bytes.NewReader(decoded))
		if err != nil {
			return nil, fmt.Errorf("failed to parse EML: %w", err)
		}
	}

	out := &extractedUpload{}
	out.Title, _ = reader.Header.Subject()
	if from, err := reader.Header.AddressList("From"); err == nil && len(from) > 0 {
		out.Author = from[0].Name
		if out.Author == "" {
			out.Author = from[0].Address
		}
	}
	if date, err := reader.Header.Date(); err == nil {
		out.Date = &date
	}

	var htmlBody, textBody string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/html":
			htmlBody = string(body)
		case "text/plain":
			textBody = string(body)
		}
	}

	switch {
	case htmlBody != "":
		out.Content = gmail.CleanHTML(htmlBody)
	case textBody != "":
		out.Content = "<pre>" + textBody + "</pre>"
	default:
		return nil, fmt.Errorf("EML has no readable body")
	}
	return out, nil
}
