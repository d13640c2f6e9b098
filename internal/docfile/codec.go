package docfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/groundlabs/grounddb/internal/ground"
)

// Shape names the on-disk encoding a collection's documents use, selected by
// a collection's shape field in schema.yaml.
type Shape string

const (
	ShapeMD    Shape = "md"
	ShapeJSON  Shape = "json"
	ShapeJSONL Shape = "jsonl"
)

// Document is a single parsed record: its field values plus, for Markdown
// shape, the free-text body after the front matter fence.
type Document struct {
	Fields map[string]any
	Body   string
}

const frontMatterFence = "---"

// ParseMD splits a Markdown file into YAML front matter and body. A file
// with no opening fence is treated as body-only with empty front matter,
// matching collections that declare content:true but no required fields.
func ParseMD(data []byte) (Document, error) {
	text := string(data)

	if !strings.HasPrefix(text, frontMatterFence) {
		return Document{Fields: map[string]any{}, Body: text}, nil
	}

	rest := text[len(frontMatterFence):]

	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	closeIdx := indexFence(rest)
	if closeIdx == -1 {
		return Document{}, &ground.Error{Kind: ground.KindValidation, Err: fmt.Errorf("unterminated front matter fence")}
	}

	fmText := rest[:closeIdx]

	body := rest[closeIdx:]
	body = strings.TrimPrefix(body, frontMatterFence)
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")

	fields, err := UnmarshalYAML([]byte(fmText))
	if err != nil {
		return Document{}, err
	}

	return Document{Fields: fields, Body: body}, nil
}

// indexFence finds the start of a line consisting of exactly "---", or -1.
func indexFence(s string) int {
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	offset := 0

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimRight(line, "\r") == frontMatterFence {
			return offset
		}

		offset += len(line) + 1
	}

	return -1
}

// RenderMD renders fields (in opts.KeyOrder order) and body as a Markdown
// document with YAML front matter fences. If fields is empty and body is
// empty, an empty-front-matter document is still emitted so round-tripping
// content-only collections stays well-defined.
func RenderMD(fields map[string]any, body string, opts MarshalOptions) ([]byte, error) {
	yamlText, err := MarshalYAML(fields, opts)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer

	b.WriteString(frontMatterFence)
	b.WriteString("\n")
	b.WriteString(yamlText)
	b.WriteString(frontMatterFence)
	b.WriteString("\n")

	if body != "" {
		b.WriteString(body)
	}

	return b.Bytes(), nil
}

// ParseJSON decodes a single-record .json document file.
func ParseJSON(data []byte) (Document, error) {
	var fields map[string]any

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(&fields); err != nil {
		return Document{}, &ground.Error{Kind: ground.KindValidation, Err: fmt.Errorf("parsing json document: %w", err)}
	}

	return Document{Fields: fields}, nil
}

// RenderJSON renders fields as indented JSON, key order per opts.KeyOrder.
func RenderJSON(fields map[string]any, opts MarshalOptions) ([]byte, error) {
	keys := orderedKeys(fields, opts.KeyOrder)

	var b bytes.Buffer
	b.WriteString("{\n")

	for i, k := range keys {
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, &ground.Error{Kind: ground.KindIO, Err: err}
		}

		valJSON, err := json.MarshalIndent(fields[k], "  ", "  ")
		if err != nil {
			return nil, &ground.Error{Kind: ground.KindIO, Err: fmt.Errorf("encoding field %q: %w", k, err)}
		}

		b.WriteString("  ")
		b.Write(keyJSON)
		b.WriteString(": ")
		b.Write(valJSON)

		if i < len(keys)-1 {
			b.WriteString(",")
		}

		b.WriteString("\n")
	}

	b.WriteString("}\n")

	return b.Bytes(), nil
}

// ParseJSONL decodes a records (JSONL) file into one Document per line.
// Blank lines are skipped.
func ParseJSONL(data []byte) ([]Document, error) {
	var docs []Document

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var fields map[string]any

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()

		if err := dec.Decode(&fields); err != nil {
			return nil, &ground.Error{Kind: ground.KindValidation, Err: fmt.Errorf("parsing jsonl line %d: %w", lineNo, err)}
		}

		docs = append(docs, Document{Fields: fields})
	}

	if err := scanner.Err(); err != nil {
		return nil, &ground.Error{Kind: ground.KindIO, Err: err}
	}

	return docs, nil
}

// RenderJSONLLine renders a single record as one compact JSON line
// (no trailing newline).
func RenderJSONLLine(fields map[string]any, opts MarshalOptions) ([]byte, error) {
	keys := orderedKeys(fields, opts.KeyOrder)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')

	for i, k := range keys {
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, &ground.Error{Kind: ground.KindIO, Err: err}
		}

		valJSON, err := json.Marshal(fields[k])
		if err != nil {
			return nil, &ground.Error{Kind: ground.KindIO, Err: fmt.Errorf("encoding field %q: %w", k, err)}
		}

		ordered = append(ordered, keyJSON...)
		ordered = append(ordered, ':')
		ordered = append(ordered, valJSON...)

		if i < len(keys)-1 {
			ordered = append(ordered, ',')
		}
	}

	ordered = append(ordered, '}')

	return ordered, nil
}

// RenderJSONL renders all docs as a JSONL byte stream, one line per record.
func RenderJSONL(docsFields []map[string]any, opts MarshalOptions) ([]byte, error) {
	var b bytes.Buffer

	for _, fields := range docsFields {
		line, err := RenderJSONLLine(fields, opts)
		if err != nil {
			return nil, err
		}

		b.Write(line)
		b.WriteString("\n")
	}

	return b.Bytes(), nil
}
