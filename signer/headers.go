package signer

import "github.com/firasghr/HeyteaDIY/client"

// UserAgent is the WebView user agent of the vendor's Android app.
const UserAgent = "Mozilla/5.0 (Linux; Android 16; 2410DPN6CC Build/BP2A.250605.031.A3; wv) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/86.0.4240.99 XWEB/4433 MMWEBSDK/20220904 Mobile Safari/537.36 MMWEBID/5976 SAAASDK miniProgram Luggage/3.0.2 NetType/WIFI Language/zh_CN ABI/arm64 MiniProgramEnv/android"

const appVersion = "4.0.1"

// BuildHeaders returns the vendor header set in the order and casing the app
// sends it. Entries of extra override same-named defaults
// (case-insensitively, last write wins); new keys are appended.
func BuildHeaders(extra map[string]string) *client.OrderedHeader {
	h := &client.OrderedHeader{}
	h.Add("User-Agent", UserAgent)
	h.Add("Connection", "keep-alive")
	h.Add("Accept", "application/prs.heytea.v1+json")
	h.Add("Accept-Encoding", "gzip")
	h.Add("Content-Type", "application/json")
	h.Add("charset", "utf-8")
	h.Add("accept-language", "zh-CN")
	h.Add("x-client-version", appVersion)
	h.Add("current-page", "/pages/login/login_app/index")
	h.Add("client-version", appVersion)
	h.Add("version", appVersion)
	h.Add("gmt-zone", "+08:00")
	h.Add("x-region-id", "10")
	h.Add("x-client", "app")
	h.Add("client", "2")
	h.Add("region", "1")
	h.Add("x-version", appVersion)
	h.Add("referer", "https://servicewechat.com/wx696a42df4f2456d3/400000137/page-frame.html")
	h.Merge(extra)
	return h
}
