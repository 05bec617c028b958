// Package xmlimport implements the Declarative XML Ingestor (spec
// §4.10): a resource-embedded XML document naming pages, params,
// links and attachments to create at plugin-install time. The wire
// format is a public, backward-compatible interface (spec §6.4); this
// package only parses and applies it, it does not invent new syntax.
package xmlimport

import (
	"encoding/xml"
	"errors"
	"fmt"
)

// ErrInvalidInputXml is returned by Parse when a required attribute
// (path, name, to, type) is missing, per spec §6.4.
var ErrInvalidInputXml = errors.New("xmlimport: invalid input xml")

// document is the root element wrapping a sequence of <content>
// blocks. The corpus and original_source/ carry no canonical root
// element name for this format; "snap-content" is this package's own
// choice, picked to read naturally next to the <content> children it
// wraps.
type document struct {
	XMLName xml.Name  `xml:"snap-content"`
	Content []content `xml:"content"`
}

// content mirrors one `<content path="..." [moved-from="..."]
// [owner="..."]>` element and everything nested inside it.
type content struct {
	Path        string           `xml:"path,attr"`
	MovedFrom   string           `xml:"moved-from,attr"`
	Owner       string           `xml:"owner,attr"`
	Type        string           `xml:"type,attr"`
	Params      []param          `xml:"param"`
	RemoveParam []removeParam    `xml:"remove-param"`
	Links       []link           `xml:"link"`
	RemoveLinks []removeLink     `xml:"remove-link"`
	Attachments []attachmentElem `xml:"attachment"`
}

// param mirrors `<param name="..." revision="global|branch|revision"
// lang="..." type="string|float|double|int8|int32|int64"
// overwrite="yes|no" priority="<u64>" force-namespace="yes|no">...`.
type param struct {
	Name           string `xml:"name,attr"`
	Revision       string `xml:"revision,attr"` // default "revision"
	Lang           string `xml:"lang,attr"`
	Type           string `xml:"type,attr"` // default "string"
	Overwrite      string `xml:"overwrite,attr"`
	Priority       uint64 `xml:"priority,attr"`
	ForceNamespace string `xml:"force-namespace,attr"`
	Value          string `xml:",chardata"`
}

// removeParam mirrors `<remove-param name="...">`.
type removeParam struct {
	Name string `xml:"name,attr"`
}

// link mirrors `<link name="..." to="..." mode="1:1|1:*|*:1|*:*"
// branches="*|*:*|N:N|system:...">destination-path</link>`. Only
// name/to/destination are carried into a cell: mode and branches
// describe multiplicity and branch-addressing semantics that belong to
// the out-of-scope named-link layer (spec §1's "links plugin"), not to
// this package's minimal internal/linklayer stand-in.
type link struct {
	Name        string `xml:"name,attr"`
	To          string `xml:"to,attr"`
	Mode        string `xml:"mode,attr"`
	Branches    string `xml:"branches,attr"`
	Destination string `xml:",chardata"`
}

// removeLink mirrors `<remove-link name="..." to="...">`.
type removeLink struct {
	Name string `xml:"name,attr"`
	To   string `xml:"to,attr"`
}

// attachmentElem mirrors `<attachment name="..." [owner="..."] type="...">
// <path>...</path>[<mime-type>...</mime-type>][<dependency>...</dependency>...]`.
type attachmentElem struct {
	Name         string          `xml:"name,attr"`
	Owner        string          `xml:"owner,attr"`
	Type         string          `xml:"type,attr"`
	Path         string          `xml:"path"`
	MimeType     string          `xml:"mime-type"`
	Dependencies []xmlDependency `xml:"dependency"`
}

// xmlDependency mirrors `<dependency namespace="..." name="..."/>` or
// just `<dependency>name</dependency>` content text.
type xmlDependency struct {
	Namespace string `xml:"namespace,attr"`
	Name      string `xml:",chardata"`
}

// Parse decodes raw into a document and validates every required
// attribute spec §6.4 names (path, name, to, type), returning
// ErrInvalidInputXml wrapped with the offending element on the first
// violation found.
func Parse(raw []byte) (*document, error) {
	var doc document
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("xmlimport: decode: %w", err)
	}
	for i := range doc.Content {
		c := &doc.Content[i]
		if c.Path == "" {
			return nil, fmt.Errorf("%w: content element missing path", ErrInvalidInputXml)
		}
		if c.Type == "" {
			c.Type = "page"
		}
		for _, p := range c.Params {
			if p.Name == "" {
				return nil, fmt.Errorf("%w: param under %q missing name", ErrInvalidInputXml, c.Path)
			}
		}
		for _, rp := range c.RemoveParam {
			if rp.Name == "" {
				return nil, fmt.Errorf("%w: remove-param under %q missing name", ErrInvalidInputXml, c.Path)
			}
		}
		for _, l := range c.Links {
			if l.Name == "" || l.To == "" {
				return nil, fmt.Errorf("%w: link under %q missing name or to", ErrInvalidInputXml, c.Path)
			}
		}
		for _, rl := range c.RemoveLinks {
			if rl.Name == "" || rl.To == "" {
				return nil, fmt.Errorf("%w: remove-link under %q missing name or to", ErrInvalidInputXml, c.Path)
			}
		}
		for _, a := range c.Attachments {
			if a.Name == "" || a.Type == "" {
				return nil, fmt.Errorf("%w: attachment under %q missing name or type", ErrInvalidInputXml, c.Path)
			}
		}
	}
	return &doc, nil
}
