// Firma XAdES-BES enveloped para comprobantes del SRI.
// La ds:Signature se agrega como último hijo del nodo raíz (factura / comprobanteRetencion).

package sri

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/ucarion/c14n"
	"golang.org/x/crypto/pkcs12"
)

// Namespaces y algoritmos XMLDSig / XAdES aceptados por el SRI.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES     = "http://uri.etsi.org/01903/v1.3.2#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA1         = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgSHA1            = "http://www.w3.org/2000/09/xmldsig#sha1"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	typeSignedProps    = "http://uri.etsi.org/01903#SignedProperties"
)

// LoadFromP12 carga certificado y llave privada desde el archivo .p12 emitido por la entidad certificadora.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	return DecodeP12(data, password)
}

// DecodeP12 decodifica un contenedor PKCS#12 ya leído.
func DecodeP12(data []byte, password string) (tls.Certificate, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// XAdESSigner implementa electronic.Signer: genera el XML del payload y lo firma.
type XAdESSigner struct {
	cert    tls.Certificate
	builder *XMLBuilder
	now     func() time.Time
	newID   func() string
}

// NewXAdESSigner valida que el certificado tenga llave RSA.
func NewXAdESSigner(cert tls.Certificate, builder *XMLBuilder) (*XAdESSigner, error) {
	if _, ok := cert.PrivateKey.(*rsa.PrivateKey); !ok {
		return nil, fmt.Errorf("sri: el certificado debe incluir llave privada RSA")
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("sri: certificado vacío")
	}
	if builder == nil {
		builder = NewXMLBuilder()
	}
	return &XAdESSigner{
		cert:    cert,
		builder: builder,
		now:     time.Now,
		newID:   func() string { return strings.ReplaceAll(uuid.New().String(), "-", "")[:12] },
	}, nil
}

// Sign arma el XML del comprobante y devuelve el XML firmado.
func (s *XAdESSigner) Sign(_ context.Context, docType string, payload []byte) (string, error) {
	raw, err := s.builder.Build(docType, payload)
	if err != nil {
		return "", err
	}
	signed, err := s.SignXML(raw)
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// SignXML firma un XML de comprobante ya generado.
func (s *XAdESSigner) SignXML(xmlBytes []byte) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("sri: XML vacío")
	}
	priv := s.cert.PrivateKey.(*rsa.PrivateKey)
	x509Cert, err := x509.ParseCertificate(s.cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("sri: parsear certificado: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("sri: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("sri: documento sin raíz")
	}
	rootID := root.SelectAttrValue("id", ComprobanteID)

	ids := newSignatureIDs(s.newID())

	// 1) Digest del comprobante sin firma (transformación enveloped).
	rootOnly := etree.NewDocument()
	rootOnly.SetRoot(root.Copy())
	rootBytes, err := rootOnly.WriteToBytes()
	if err != nil {
		return nil, err
	}
	docDigest, err := digest(rootBytes)
	if err != nil {
		return nil, err
	}

	// 2) KeyInfo y SignedProperties con los namespaces heredados de ds:Signature.
	certB64 := base64.StdEncoding.EncodeToString(x509Cert.Raw)
	keyInfo := buildKeyInfo(ids, certB64, &priv.PublicKey)
	keyInfoDigest, err := digest([]byte(withNamespaces(keyInfo)))
	if err != nil {
		return nil, err
	}
	signedProps := buildSignedProperties(ids, x509Cert, s.now())
	propsDigest, err := digest([]byte(withNamespaces(signedProps)))
	if err != nil {
		return nil, err
	}

	// 3) SignedInfo firmado con RSA-SHA1.
	signedInfo := buildSignedInfo(ids, rootID, propsDigest, keyInfoDigest, docDigest)
	canonicalSignedInfo, err := canonicalizeXML([]byte(withNamespaces(signedInfo)))
	if err != nil {
		return nil, fmt.Errorf("sri: canonicalizar SignedInfo: %w", err)
	}
	h := sha1.Sum(canonicalSignedInfo)
	sig, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA1, h[:])
	if err != nil {
		return nil, fmt.Errorf("sri: firmar SignedInfo: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `" xmlns:etsi="` + NamespaceXAdES + `" Id="` + ids.signature + `">`)
	sb.WriteString(signedInfo)
	sb.WriteString(`<ds:SignatureValue Id="` + ids.signatureValue + `">` + base64.StdEncoding.EncodeToString(sig) + `</ds:SignatureValue>`)
	sb.WriteString(keyInfo)
	sb.WriteString(`<ds:Object Id="` + ids.object + `"><etsi:QualifyingProperties Target="#` + ids.signature + `">`)
	sb.WriteString(signedProps)
	sb.WriteString(`</etsi:QualifyingProperties></ds:Object>`)
	sb.WriteString(`</ds:Signature>`)

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(sb.String()); err != nil {
		return nil, fmt.Errorf("sri: parsear Signature: %w", err)
	}
	root.AddChild(sigDoc.Root())

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

type signatureIDs struct {
	signature      string
	signedInfo     string
	signedProps    string
	reference      string
	certificate    string
	signatureValue string
	object         string
}

func newSignatureIDs(n string) signatureIDs {
	return signatureIDs{
		signature:      "Signature" + n,
		signedInfo:     "Signature-SignedInfo" + n,
		signedProps:    "Signature" + n + "-SignedProperties",
		reference:      "Reference-ID-" + n,
		certificate:    "Certificate" + n,
		signatureValue: "SignatureValue" + n,
		object:         "Signature" + n + "-Object",
	}
}

func buildKeyInfo(ids signatureIDs, certB64 string, pub *rsa.PublicKey) string {
	var sb strings.Builder
	sb.WriteString(`<ds:KeyInfo Id="` + ids.certificate + `">`)
	sb.WriteString(`<ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data>`)
	sb.WriteString(`<ds:KeyValue><ds:RSAKeyValue>`)
	sb.WriteString(`<ds:Modulus>` + base64.StdEncoding.EncodeToString(pub.N.Bytes()) + `</ds:Modulus>`)
	sb.WriteString(`<ds:Exponent>` + base64.StdEncoding.EncodeToString(bigEndian(pub.E)) + `</ds:Exponent>`)
	sb.WriteString(`</ds:RSAKeyValue></ds:KeyValue>`)
	sb.WriteString(`</ds:KeyInfo>`)
	return sb.String()
}

func buildSignedProperties(ids signatureIDs, cert *x509.Certificate, now time.Time) string {
	certDigest := sha1.Sum(cert.Raw)
	var sb strings.Builder
	sb.WriteString(`<etsi:SignedProperties Id="` + ids.signedProps + `">`)
	sb.WriteString(`<etsi:SignedSignatureProperties>`)
	sb.WriteString(`<etsi:SigningTime>` + now.Format(time.RFC3339) + `</etsi:SigningTime>`)
	sb.WriteString(`<etsi:SigningCertificate><etsi:Cert><etsi:CertDigest>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + base64.StdEncoding.EncodeToString(certDigest[:]) + `</ds:DigestValue>`)
	sb.WriteString(`</etsi:CertDigest><etsi:IssuerSerial>`)
	sb.WriteString(`<ds:X509IssuerName>` + escapeXML(cert.Issuer.String()) + `</ds:X509IssuerName>`)
	sb.WriteString(`<ds:X509SerialNumber>` + cert.SerialNumber.String() + `</ds:X509SerialNumber>`)
	sb.WriteString(`</etsi:IssuerSerial></etsi:Cert></etsi:SigningCertificate>`)
	sb.WriteString(`</etsi:SignedSignatureProperties>`)
	sb.WriteString(`<etsi:SignedDataObjectProperties><etsi:DataObjectFormat ObjectReference="#` + ids.reference + `">`)
	sb.WriteString(`<etsi:Description>contenido comprobante</etsi:Description><etsi:MimeType>text/xml</etsi:MimeType>`)
	sb.WriteString(`</etsi:DataObjectFormat></etsi:SignedDataObjectProperties>`)
	sb.WriteString(`</etsi:SignedProperties>`)
	return sb.String()
}

func buildSignedInfo(ids signatureIDs, rootID, propsDigest, keyInfoDigest, docDigest string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo Id="` + ids.signedInfo + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"></ds:CanonicalizationMethod>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA1 + `"></ds:SignatureMethod>`)
	writeReference(&sb, `Id="SignedPropertiesID`+ids.signedProps+`" Type="`+typeSignedProps+`" URI="#`+ids.signedProps+`"`, "", propsDigest)
	writeReference(&sb, `URI="#`+ids.certificate+`"`, "", keyInfoDigest)
	writeReference(&sb, `Id="`+ids.reference+`" URI="#`+rootID+`"`,
		`<ds:Transforms><ds:Transform Algorithm="`+TransformEnveloped+`"></ds:Transform></ds:Transforms>`, docDigest)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func writeReference(sb *strings.Builder, attrs, transforms, digestB64 string) {
	sb.WriteString(`<ds:Reference ` + attrs + `>`)
	sb.WriteString(transforms)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + digestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
}

// withNamespaces declara en el fragmento los namespaces que hereda de ds:Signature,
// tal como los incluye la canonicalización inclusiva de un subárbol.
func withNamespaces(fragment string) string {
	i := strings.IndexAny(fragment, " >")
	if i < 0 {
		return fragment
	}
	return fragment[:i] + ` xmlns:ds="` + NamespaceDS + `" xmlns:etsi="` + NamespaceXAdES + `"` + fragment[i:]
}

func digest(data []byte) (string, error) {
	canonical, err := canonicalizeXML(data)
	if err != nil {
		return "", fmt.Errorf("sri: canonicalizar: %w", err)
	}
	h := sha1.Sum(canonical)
	return base64.StdEncoding.EncodeToString(h[:]), nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

func bigEndian(e int) []byte {
	var out []byte
	for e > 0 {
		out = append([]byte{byte(e & 0xff)}, out...)
		e >>= 8
	}
	return out
}
