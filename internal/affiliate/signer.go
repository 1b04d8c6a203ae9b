package affiliate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Signer produces the Authorization header required by the affiliate
// open API. The timestamp is taken from the clock on every call.
type Signer struct {
	appID  string
	secret string
	now    func() time.Time
}

func NewSigner(appID, secret string) *Signer {
	return &Signer{appID: appID, secret: secret, now: time.Now}
}

// Sign returns the unix timestamp used and the hex SHA-256 of
// appID + timestamp + payload + secret.
func (s *Signer) Sign(payload []byte) (int64, string) {
	ts := s.now().Unix()
	h := sha256.New()
	h.Write([]byte(s.appID))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write(payload)
	h.Write([]byte(s.secret))
	return ts, hex.EncodeToString(h.Sum(nil))
}

// Authorization returns the full header value for payload.
func (s *Signer) Authorization(payload []byte) string {
	ts, sig := s.Sign(payload)
	return fmt.Sprintf("SHA256 Credential=%s, Timestamp=%d, Signature=%s", s.appID, ts, sig)
}
