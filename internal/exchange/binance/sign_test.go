package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

func TestSignQuerySignatureMatchesPayload(t *testing.T) {
	secret := "test-secret"
	query := signQuery(secret, map[string]string{
		"fromAsset":  "USDC",
		"toAsset":    "USDT",
		"fromAmount": "10",
	}, 0)

	// signature 必须是最后一个参数，且是对前面整段 query 的 HMAC
	idx := strings.LastIndex(query, "&signature=")
	if idx < 0 {
		t.Fatalf("query 缺少 signature 参数: %s", query)
	}
	payload := query[:idx]
	got := query[idx+len("&signature="):]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	want := hex.EncodeToString(mac.Sum(nil))
	if got != want {
		t.Fatalf("签名不匹配: got=%s want=%s", got, want)
	}
}

func TestSignQueryKeysSorted(t *testing.T) {
	query := signQuery("s", map[string]string{
		"zeta":  "1",
		"alpha": "2",
		"mid":   "3",
	}, 0)
	payload := query[:strings.LastIndex(query, "&signature=")]

	last := ""
	for _, pair := range strings.Split(payload, "&") {
		key := strings.SplitN(pair, "=", 2)[0]
		if key < last {
			t.Fatalf("参数未按 key 排序: %s 在 %s 之后", key, last)
		}
		last = key
	}
}

func TestSignQueryIncludesTimestampAndRecvWindow(t *testing.T) {
	query := signQuery("s", map[string]string{"fromAsset": "USDC"}, 5000*time.Millisecond)
	if !strings.Contains(query, "timestamp=") {
		t.Fatal("query 应包含 timestamp")
	}
	if !strings.Contains(query, "recvWindow=5000") {
		t.Fatalf("query 应包含 recvWindow=5000: %s", query)
	}
}
