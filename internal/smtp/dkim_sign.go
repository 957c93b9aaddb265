package smtp

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/OliverSchlueter/smteepee/internal/messages"
	"github.com/emersion/go-msgauth/dkim"
)

var dkimHeaderKeys = []string{
	"from",
	"to",
	"subject",
	"date",
	"message-id",
}

// Signer adds a DKIM-Signature header to stored messages.
type Signer struct {
	domain   string
	selector string
	key      crypto.Signer
}

func NewSigner(key crypto.Signer, domain, selector string) *Signer {
	return &Signer{
		domain:   domain,
		selector: selector,
		key:      key,
	}
}

// LoadDKIMSigner reads a PEM encoded PKCS#1 or PKCS#8 private key.
func LoadDKIMSigner(path, domain, selector string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM data")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return NewSigner(key, domain, selector), nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", parsed)
	}
	return NewSigner(key, domain, selector), nil
}

// Sign replaces the message lines with the signed message. The message is
// left untouched if signing fails.
func (s *Signer) Sign(m *messages.Message) error {
	opts := &dkim.SignOptions{
		Domain:     s.domain,
		Selector:   s.selector,
		Signer:     s.key,
		HeaderKeys: dkimHeaderKeys,
	}

	var signed bytes.Buffer
	if err := dkim.Sign(&signed, bytes.NewReader(m.Body()), opts); err != nil {
		return err
	}

	m.Data = strings.Split(strings.TrimSuffix(signed.String(), "\r\n"), "\r\n")
	return nil
}
