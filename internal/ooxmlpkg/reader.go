// Package ooxmlpkg is the black-box OOXML package reader/writer:
// enumeration of parts by URI, reading a part as XML or bytes, following
// typed relationships, and writing back a modified copy. Both the pml and
// sml pipelines are built on top of it; it knows nothing about
// PresentationML or SpreadsheetML semantics.
package ooxmlpkg

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/VantageDataChat/ooxmlcompare/errs"
)

// maxPartSize guards against zip-bomb style single-part expansion.
const maxPartSize = 256 << 20 // 256 MB

// Package is an opened OOXML ZIP package: a flat namespace of named parts
// plus, per directory, a relationships graph.
type Package struct {
	raw   []byte
	zr    *zip.Reader
	names map[string]*zip.File
}

// Open parses raw bytes as an OOXML ZIP package.
func Open(raw []byte) (*Package, error) {
	if len(raw) == 0 {
		return nil, errs.NewPrecondition("ooxmlpkg.Open", "empty package bytes")
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, errs.NewPackage("ooxmlpkg.Open", "", err)
	}
	names := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = f
	}
	return &Package{raw: raw, zr: zr, names: names}, nil
}

// Bytes returns the raw bytes of the named part.
func (p *Package) Bytes(name string) ([]byte, error) {
	f, ok := p.names[name]
	if !ok {
		return nil, errs.NewPackage("ooxmlpkg.Bytes", name, fmt.Errorf("part not found"))
	}
	if f.UncompressedSize64 > maxPartSize {
		return nil, errs.NewPackage("ooxmlpkg.Bytes", name, fmt.Errorf("part exceeds maximum allowed size (%d bytes)", maxPartSize))
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errs.NewPackage("ooxmlpkg.Bytes", name, err)
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, int64(maxPartSize)))
}

// Exists reports whether a part is present in the package.
func (p *Package) Exists(name string) bool {
	_, ok := p.names[name]
	return ok
}

// XML reads and unmarshals the named part into v.
func (p *Package) XML(name string, v interface{}) error {
	data, err := p.Bytes(name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return errs.NewPartParse("ooxmlpkg.XML", name, err)
	}
	return nil
}

// Decoder returns a streaming token decoder over the named part.
func (p *Package) Decoder(name string) (*xml.Decoder, error) {
	data, err := p.Bytes(name)
	if err != nil {
		return nil, err
	}
	return xml.NewDecoder(bytes.NewReader(data)), nil
}

// Names returns every part name in the package, in archive order.
func (p *Package) Names() []string {
	out := make([]string, 0, len(p.zr.File))
	for _, f := range p.zr.File {
		out = append(out, f.Name)
	}
	return out
}

// Raw returns the package's original byte buffer, used for the
// byte-for-byte passthrough invariant when a renderer makes no
// changes.
func (p *Package) Raw() []byte { return p.raw }

// Relationship is one typed reference between parts.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationshipsXML struct {
	XMLName       xml.Name       `xml:"Relationships"`
	Relationships []Relationship `xml:"Relationship"`
}

// Relationships reads the relationships file belonging to partName (i.e.
// "<dir>/_rels/<base>.rels"). A missing rels file is not an error: it
// returns an empty slice.
func (p *Package) Relationships(partName string) ([]Relationship, error) {
	relsPath := RelsPathFor(partName)
	if !p.Exists(relsPath) {
		return nil, nil
	}
	data, err := p.Bytes(relsPath)
	if err != nil {
		return nil, nil
	}
	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, errs.NewPartParse("ooxmlpkg.Relationships", relsPath, err)
	}
	return rels.Relationships, nil
}

// RelsPathFor returns the conventional relationships-part path for partName,
// e.g. "ppt/slides/slide1.xml" -> "ppt/slides/_rels/slide1.xml.rels".
func RelsPathFor(partName string) string {
	dir := path.Dir(partName)
	base := path.Base(partName)
	return path.Join(dir, "_rels", base+".rels")
}

// ResolveTarget resolves a relationship Target relative to the directory of
// the part that declared it (relationship targets are directory-relative
// per OOXML, not package-root-relative).
func ResolveTarget(fromPart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	dir := path.Dir(fromPart)
	return path.Clean(path.Join(dir, target))
}

// FindTarget resolves a relationship ID declared on fromPart to its target
// part path, or "" if not found.
func (p *Package) FindTarget(fromPart, relID string) (string, error) {
	rels, err := p.Relationships(fromPart)
	if err != nil {
		return "", err
	}
	for _, rel := range rels {
		if rel.ID == relID {
			return ResolveTarget(fromPart, rel.Target), nil
		}
	}
	return "", nil
}
