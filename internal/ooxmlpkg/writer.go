package ooxmlpkg

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"

	"github.com/VantageDataChat/ooxmlcompare/errs"
)

// Rewrite produces a new package byte buffer from src: every part is copied
// byte-for-byte except those named in overrides, whose bytes are replaced.
// Keys in overrides that do not exist in src are appended as new parts.
// extraOrder optionally controls the order new parts are appended in (any
// override key not listed there is appended afterward in sorted-name
// order).
//
// This is the renderer's only way to mutate a package: it never re-parses
// or re-serializes untouched parts, so namespace declarations and attribute
// ordering on unmodified parts are preserved byte-identically.
func Rewrite(src *Package, overrides map[string][]byte, extraOrder []string) ([]byte, error) {
	if src == nil {
		return nil, errs.NewPrecondition("ooxmlpkg.Rewrite", "nil source package")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	written := make(map[string]bool, len(overrides))
	for _, name := range src.Names() {
		data, ok := overrides[name]
		if !ok {
			var err error
			data, err = src.Bytes(name)
			if err != nil {
				return nil, err
			}
		}
		if err := writePart(zw, name, data); err != nil {
			return nil, err
		}
		written[name] = true
	}

	appendNew := func(name string) error {
		if written[name] {
			return nil
		}
		data, ok := overrides[name]
		if !ok {
			return nil
		}
		written[name] = true
		return writePart(zw, name, data)
	}

	for _, name := range extraOrder {
		if err := appendNew(name); err != nil {
			return nil, err
		}
	}
	// Any new part not named in extraOrder is appended in sorted-name order
	// so output bytes stay deterministic across runs.
	rest := make([]string, 0, len(overrides))
	for name := range overrides {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		if err := appendNew(name); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errs.NewPackage("ooxmlpkg.Rewrite", "", err)
	}
	return buf.Bytes(), nil
}

func writePart(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.Create(name)
	if err != nil {
		return errs.NewPackage("ooxmlpkg.Rewrite", name, fmt.Errorf("create part: %w", err))
	}
	if _, err := fw.Write(data); err != nil {
		return errs.NewPackage("ooxmlpkg.Rewrite", name, fmt.Errorf("write part: %w", err))
	}
	return nil
}
