package audit

import (
	"regexp"
	"strings"
)

// ClientInfo 从User-Agent解析出的客户端信息
type ClientInfo struct {
	Browser      string `json:"browser"`
	OS           string `json:"os"`
	ComputerName string `json:"computerName"`
}

var platformToken = regexp.MustCompile(`\(([^)]+)\)`)

// ParseClient 解析客户端信息，computerHeader为客户端主动上报的计算机名
func ParseClient(userAgent, computerHeader string) ClientInfo {
	return ClientInfo{
		Browser:      Browser(userAgent),
		OS:           OperatingSystem(userAgent),
		ComputerName: ComputerName(userAgent, computerHeader),
	}
}

// Browser 按子串粗略识别浏览器，顺序有意义
func Browser(ua string) string {
	switch {
	case ua == "":
		return UnknownValue
	case strings.Contains(ua, "Firefox"):
		return "Firefox"
	case strings.Contains(ua, "Edg"):
		return "Edge"
	case strings.Contains(ua, "Chrome"):
		return "Chrome"
	case strings.Contains(ua, "Safari"):
		return "Safari"
	case strings.Contains(ua, "Opera"), strings.Contains(ua, "OPR"):
		return "Opera"
	}
	return UnknownValue
}

// OperatingSystem 按子串粗略识别操作系统
func OperatingSystem(ua string) string {
	switch {
	case ua == "":
		return UnknownValue
	case strings.Contains(ua, "Windows NT 10.0"):
		return "Windows 10/11"
	case strings.Contains(ua, "Windows NT 6.3"):
		return "Windows 8.1"
	case strings.Contains(ua, "Windows NT 6.2"):
		return "Windows 8"
	case strings.Contains(ua, "Windows NT 6.1"):
		return "Windows 7"
	case strings.Contains(ua, "Mac OS X"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "iOS"), strings.Contains(ua, "iPhone"):
		return "iOS"
	}
	return UnknownValue
}

// ComputerName 优先使用请求头，否则取UA括号内第一段
func ComputerName(ua, header string) string {
	if name := strings.TrimSpace(header); name != "" {
		return name
	}
	m := platformToken.FindStringSubmatch(ua)
	if len(m) < 2 {
		return UnknownValue
	}
	first := strings.TrimSpace(strings.Split(m[1], ";")[0])
	if first == "" {
		return UnknownValue
	}
	return first
}
