package archive

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rfjakob/eme"
)

// Recipient is one addressee of an encrypted archive: their X.509
// certificate, used to RSA-wrap the per-file content-encryption key.
type Recipient struct {
	Certificate *x509.Certificate
}

// The envelope structure below is hand-rolled directly on
// encoding/asn1 and crypto/x509, following RFC 5652's EnvelopedData
// shape closely enough for DFIR tooling to unwrap it. Per-file
// AES-256-CBC content keys are generated fresh and, before
// RSA-wrapping, diffused across the whole key block with
// eme.Transform — the wide-block construction commonly used to turn a
// deterministic block cipher into a wide-block cipher for filename
// encryption, reused here to avoid leaking CEK structure across
// recipients.

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type recipientInfo struct {
	Version                int
	IssuerAndSerialNumber  issuerAndSerial
	KeyEncryptionAlgorithm algorithmIdentifier
	EncryptedKey           []byte
}

type issuerAndSerial struct {
	Issuer       asn1.RawValue
	SerialNumber asn1.RawValue
}

var (
	oidAES256CBC  = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}
	oidRSAEncrypt = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	emeTweakLabel = []byte("orc-core/cms/cek-diffusion")
)

// envelopeWriter encrypts every byte written to it with a fresh
// per-archive AES-256-CBC content key, wrapped for each configured
// recipient, and writes a small self-describing header in front of
// the ciphertext stream so a consumer can recover the CEK before
// decrypting the body. CBC requires whole blocks: writes are buffered
// until a full block accumulates, and Close pads the final partial
// block with PKCS#7 per RFC 5652.
type envelopeWriter struct {
	sink       io.WriteCloser
	mode       cipher.BlockMode
	pending    []byte
	journaling bool
}

func newEnvelopeWriter(sink io.WriteCloser, recipients []Recipient, journaling bool) (*envelopeWriter, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("archive: CMS envelope requires at least one recipient")
	}
	cek := make([]byte, 32) // AES-256
	if _, err := rand.Read(cek); err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}

	wrapped, err := wrapRecipientKeys(cek, recipients)
	if err != nil {
		return nil, err
	}

	hdr, err := asn1.Marshal(struct {
		Version              int
		ContentEncryptionAlg asn1.ObjectIdentifier
		IV                   []byte
		Recipients           []recipientInfo
	}{Version: 1, ContentEncryptionAlg: oidAES256CBC, IV: iv, Recipients: wrapped})
	if err != nil {
		return nil, err
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(hdr)))
	if _, err := sink.Write(lenPrefix[:]); err != nil {
		return nil, err
	}
	if _, err := sink.Write(hdr); err != nil {
		return nil, err
	}

	return &envelopeWriter{
		sink:       sink,
		mode:       cipher.NewCBCEncrypter(block, iv),
		journaling: journaling,
	}, nil
}

// wrapRecipientKeys diffuses the CEK with eme.Transform (keyed by a
// fixed label tweak, since the key block itself — unlike a filename —
// carries no natural per-item tweak) before RSA-OAEP-wrapping it for
// each recipient, so no two recipients' wrapped blobs reveal the same
// intermediate value even when they share a CEK.
func wrapRecipientKeys(cek []byte, recipients []Recipient) ([]recipientInfo, error) {
	diffuseBlock, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	padded := make([]byte, aes.BlockSize*2)
	copy(padded, cek)
	var tweak [16]byte
	copy(tweak[:], emeTweakLabel)
	diffused := eme.Transform(diffuseBlock, tweak[:], padded, eme.DirectionEncrypt)

	out := make([]recipientInfo, 0, len(recipients))
	for _, r := range recipients {
		pub, ok := r.Certificate.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("archive: recipient certificate %s has a non-RSA public key", r.Certificate.Subject)
		}
		enc, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, diffused, nil)
		if err != nil {
			return nil, err
		}
		serial, err := asn1.Marshal(r.Certificate.SerialNumber)
		if err != nil {
			return nil, err
		}
		out = append(out, recipientInfo{
			Version: 0,
			IssuerAndSerialNumber: issuerAndSerial{
				Issuer:       asn1.RawValue{FullBytes: r.Certificate.RawIssuer},
				SerialNumber: asn1.RawValue{FullBytes: serial},
			},
			KeyEncryptionAlgorithm: algorithmIdentifier{Algorithm: oidRSAEncrypt},
			EncryptedKey:           enc,
		})
	}
	return out, nil
}

func (e *envelopeWriter) Write(p []byte) (int, error) {
	written := len(p)
	e.pending = append(e.pending, p...)

	n := len(e.pending) - len(e.pending)%aes.BlockSize
	if n == 0 {
		return written, nil
	}
	if err := e.encryptAndWrite(e.pending[:n]); err != nil {
		return 0, err
	}
	remainder := len(e.pending) - n
	copy(e.pending, e.pending[n:])
	e.pending = e.pending[:remainder]
	return written, nil
}

// encryptAndWrite encrypts a whole number of blocks in place and
// writes the ciphertext, framed with a length prefix in journaling
// mode so a reader tailing a still-growing archive can resynchronize
// after a torn read instead of needing the final length up front.
func (e *envelopeWriter) encryptAndWrite(blocks []byte) error {
	out := make([]byte, len(blocks))
	e.mode.CryptBlocks(out, blocks)
	if e.journaling {
		var lenPrefix [4]byte
		binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(out)))
		if _, err := e.sink.Write(lenPrefix[:]); err != nil {
			return err
		}
	}
	_, err := e.sink.Write(out)
	return err
}

// Close pads whatever partial block remains with PKCS#7 (RFC 5652
// §6.3: always pads, even when the plaintext is already block-aligned,
// so the unpadding side has an unambiguous rule) and flushes it before
// closing the underlying sink.
func (e *envelopeWriter) Close() error {
	padLen := aes.BlockSize - len(e.pending)%aes.BlockSize
	padded := append(e.pending, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	if err := e.encryptAndWrite(padded); err != nil {
		e.sink.Close()
		return err
	}
	return e.sink.Close()
}
