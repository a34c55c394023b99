package record

import (
	"encoding/json"
	"encoding/xml"

	"github.com/wnbrewery/wnbimport/internal/ingesterr"
)

// xmpEnvelope is the RDF/XMP-style wrapper. The rest of the pipeline never
// touches this type directly — EncodeXMP/DecodeXMP are the only functions
// that know the on-disk wire format exists, per spec.md §9's design note
// that the XML envelope and the Record are decoupled by a single adapter.
type xmpEnvelope struct {
	XMLName     xml.Name `xml:"x:xmpmeta"`
	XMLNS       string   `xml:"xmlns:x,attr"`
	RDFXMLNS    string   `xml:"xmlns:rdf,attr"`
	Description rdfDescription `xml:"rdf:RDF>rdf:Description"`
}

type rdfDescription struct {
	About   string `xml:"rdf:about,attr"`
	Payload string `xml:",cdata"`
}

const (
	xmlnsX   = "adobe:ns:meta/"
	xmlnsRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
)

// EncodeXMP renders a Record as an RDF/XMP XML document. The payload between
// the RDF description's tags is the record's JSON form, which keeps the
// schema in one place (the Record struct) instead of duplicating every
// field as an XML element.
func EncodeXMP(r *Record) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, ingesterr.New(ingesterr.KindWrite, "", "failed to marshal record payload", err)
	}

	env := xmpEnvelope{
		XMLNS:    xmlnsX,
		RDFXMLNS: xmlnsRDF,
		Description: rdfDescription{
			About:   "",
			Payload: string(payload),
		},
	}

	body, err := xml.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, ingesterr.New(ingesterr.KindWrite, "", "failed to marshal xmp envelope", err)
	}

	out := append([]byte(xml.Header), body...)
	out = append(out, '\n')
	return out, nil
}

// DecodeXMP parses an RDF/XMP XML document produced by EncodeXMP back into a
// Record. Unknown fields in the embedded JSON are tolerated (spec.md §6:
// "Readers tolerate unknown fields") because json.Unmarshal already ignores
// fields absent from the Record struct.
func DecodeXMP(data []byte) (*Record, error) {
	// encoding/xml resolves the x:/rdf: prefixes to namespaces when reading,
	// so decoding matches on local element names rather than on the
	// prefixed names xmpEnvelope writes.
	var env struct {
		Description struct {
			Payload string `xml:",chardata"`
		} `xml:"RDF>Description"`
	}
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, ingesterr.New(ingesterr.KindSchemaValidation, "", "failed to parse xmp envelope", err)
	}

	var r Record
	if err := json.Unmarshal([]byte(env.Description.Payload), &r); err != nil {
		return nil, ingesterr.New(ingesterr.KindSchemaValidation, "", "failed to parse record payload", err)
	}

	return &r, nil
}
