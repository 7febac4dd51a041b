package videohost

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"time"
)

const defaultTokenTTL = 24 * time.Hour

// playbackSigner issues the compact RS256 tokens the hosting platform's CDN
// expects for signed playback: sub is the playback id, aud selects the
// resource kind ("v" video, "t" thumbnail), kid names the signing key.
type playbackSigner struct {
	keyID string
	key   *rsa.PrivateKey
	ttl   time.Duration
	now   func() time.Time
}

func newPlaybackSigner(keyID, privateKeyPEM string, ttl time.Duration) (*playbackSigner, error) {
	key, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &playbackSigner{keyID: keyID, key: key, ttl: ttl, now: time.Now}, nil
}

func parseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("decode signing key: no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("parse signing key: not an RSA key")
	}
	return key, nil
}

func (s *playbackSigner) Sign(playbackID string) (PlaybackTokens, error) {
	video, err := s.token(playbackID, "v")
	if err != nil {
		return PlaybackTokens{}, err
	}
	thumbnail, err := s.token(playbackID, "t")
	if err != nil {
		return PlaybackTokens{}, err
	}
	return PlaybackTokens{Video: video, Thumbnail: thumbnail}, nil
}

func (s *playbackSigner) token(playbackID, audience string) (string, error) {
	header, err := json.Marshal(map[string]string{
		"alg": "RS256",
		"typ": "JWT",
		"kid": s.keyID,
	})
	if err != nil {
		return "", err
	}
	claims, err := json.Marshal(map[string]interface{}{
		"sub": playbackID,
		"aud": audience,
		"exp": s.now().Add(s.ttl).Unix(),
	})
	if err != nil {
		return "", err
	}

	encode := base64.RawURLEncoding.EncodeToString
	signingInput := encode(header) + "." + encode(claims)
	digest := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign playback token: %w", err)
	}
	return signingInput + "." + encode(signature), nil
}
