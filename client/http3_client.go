package client

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"hookvault/config"
)

// NewHTTP3Client 创建访问节点的 HTTP/3 客户端；节点使用自签名证书，故跳过校验
func NewHTTP3Client(cfg config.ServerConfig, timeout time.Duration) *http.Client {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS13,
		MaxVersion:         tls.VersionTLS13,
		ClientSessionCache: tls.NewLRUClientSessionCache(128),
		NextProtos:         []string{"h3"},
	}

	tr := &http3.Transport{
		TLSClientConfig: tlsCfg,
		QUICConfig: &quic.Config{
			KeepAlivePeriod: cfg.QUICKeepAlivePeriod,
			MaxIdleTimeout:  cfg.QUICMaxIdleTimeout,
			Allow0RTT:       cfg.QUICAllow0RTT,
		},
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}
