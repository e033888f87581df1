package crt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160"

	"hookvault/logs"
	"hookvault/types"
)

// IdentityHRP 证书里节点身份标签的 bech32 前缀
const IdentityHRP = "hv"

// IdentityTag 节点运营者公钥的短标签：bech32(hash160(pubkey))
func IdentityTag(pk types.Pubkey) (string, error) {
	sum := sha256.Sum256(pk[:])
	h := ripemd160.New()
	if _, err := h.Write(sum[:]); err != nil {
		return "", err
	}
	converted, err := bech32.ConvertBits(h.Sum(nil), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(IdentityHRP, converted)
}

// GenerateSelfSigned 生成 P-256 自签名证书，组织字段写入节点身份标签
func GenerateSelfSigned(certPath, keyPath string, identity types.Pubkey, validity time.Duration) error {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	tag, err := IdentityTag(identity)
	if err != nil {
		return err
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          big.NewInt(now.UnixNano()),
		Subject:               pkix.Name{Organization: []string{tag}, CommonName: identity.String()},
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}
	certBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return err
	}
	privBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return err
	}

	for _, dir := range []string{filepath.Dir(certPath), filepath.Dir(keyPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := writePEM(certPath, "CERTIFICATE", certBytes, 0o644); err != nil {
		return err
	}
	if err := writePEM(keyPath, "EC PRIVATE KEY", privBytes, 0o600); err != nil {
		return err
	}
	logs.Debug("[crt] certificate %s key %s identity %s", certPath, keyPath, tag)
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}

// LoadOrGenerate 证书文件都存在则直接加载，否则先生成
func LoadOrGenerate(certPath, keyPath string, identity types.Pubkey, validity time.Duration) (tls.Certificate, error) {
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	if certErr != nil || keyErr != nil {
		if err := GenerateSelfSigned(certPath, keyPath, identity, validity); err != nil {
			return tls.Certificate{}, fmt.Errorf("generate certificate: %w", err)
		}
	}
	return tls.LoadX509KeyPair(certPath, keyPath)
}
