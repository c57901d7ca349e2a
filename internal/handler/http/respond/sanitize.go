package respond

import (
	"net/url"
	"regexp"
)

var (
	// URL 内の認証情報（user:password@）
	userinfoPattern = regexp.MustCompile(`://([^:/@\s]+):([^@/\s]+)@`)

	// クエリ文字列はトークンを含むことがあるため丸ごと伏せる
	queryPattern = regexp.MustCompile(`(https?://[^\s?#"]+)\?[^\s#"]*`)
)

// SanitizeError は機密情報をマスクしたエラーメッセージを返す
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return sanitizeText(err.Error())
}

// SanitizeURL returns rawURL fit for logs: the password and the query are
// masked and the fragment is dropped.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return sanitizeText(rawURL)
	}
	if u.RawQuery != "" {
		u.RawQuery = "****"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.Redacted()
}

func sanitizeText(msg string) string {
	msg = userinfoPattern.ReplaceAllString(msg, "://$1:****@")
	msg = queryPattern.ReplaceAllString(msg, "$1?****")
	return msg
}
