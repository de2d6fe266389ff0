package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// signQuery 对请求参数做 HMAC-SHA256 签名（Binance SIGNED 接口要求）
// 返回带 timestamp/recvWindow/signature 的完整 query string
func signQuery(secret string, params map[string]string, recvWindow time.Duration) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if recvWindow > 0 {
		values.Set("recvWindow", strconv.FormatInt(recvWindow.Milliseconds(), 10))
	}

	// 参数按 key 排序后拼接，保证同一组参数签名稳定
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := ""
	for i, k := range keys {
		if i > 0 {
			query += "&"
		}
		query += fmt.Sprintf("%s=%s", k, url.QueryEscape(values.Get(k)))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	signature := hex.EncodeToString(mac.Sum(nil))

	return query + "&signature=" + signature
}
