// rwusd-creds 把账号 API 凭证写入加密凭证库
// 之后 rwusd 可以用 -secret-store 读取，避免在 crontab 里放明文密钥
//
// 使用方法:
//	export RWBOT_STORE_KEY=<32字节密钥的 hex 或 base64>
//	rwusd-creds -store .secrets -account-id account1 -api-key KEY -api-secret SECRET
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mybian/rwbot/pkg/secretstore"
)

func main() {
	storePath := flag.String("store", ".secrets", "凭证库路径（badger 目录）")
	accountID := flag.String("account-id", "", "账号标识（必填）")
	apiKey := flag.String("api-key", "", "币安 API key（必填）")
	apiSecret := flag.String("api-secret", "", "币安 API secret（必填）")
	flag.Parse()

	if *accountID == "" || *apiKey == "" || *apiSecret == "" {
		fmt.Fprintln(os.Stderr, "必须指定 -account-id、-api-key 和 -api-secret")
		os.Exit(1)
	}

	key, err := secretstore.ParseKey(os.Getenv("RWBOT_STORE_KEY"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "解析 RWBOT_STORE_KEY 失败: %v\n", err)
		os.Exit(1)
	}
	if key == nil {
		fmt.Fprintln(os.Stderr, "警告: 未设置 RWBOT_STORE_KEY，凭证库将不加密存储")
	}

	store, err := secretstore.Open(secretstore.OpenOptions{Path: *storePath, EncryptionKey: key})
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开凭证库失败: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.SetString(secretstore.CredentialKey(*accountID, "api_key"), *apiKey); err != nil {
		fmt.Fprintf(os.Stderr, "写入 api_key 失败: %v\n", err)
		os.Exit(1)
	}
	if err := store.SetString(secretstore.CredentialKey(*accountID, "api_secret"), *apiSecret); err != nil {
		fmt.Fprintf(os.Stderr, "写入 api_secret 失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("账号 %s 的凭证已写入 %s\n", *accountID, *storePath)
}
