package cache

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.-]*)://([^/]+)/(.+)$`)

// Identifier 是解析后的远端对象标识，Raw 保留原始字符串作为元数据主键。
type Identifier struct {
	Raw       string
	Scheme    string
	Container string
	Key       string
}

// ParseIdentifier 将 scheme://container/key 拆分为三段，scheme 统一转为小写。
func ParseIdentifier(raw string) (Identifier, error) {
	m := identifierPattern.FindStringSubmatch(raw)
	if m == nil {
		return Identifier{}, fmt.Errorf("%w: %q", ErrMalformedIdentifier, raw)
	}
	return Identifier{
		Raw:       raw,
		Scheme:    strings.ToLower(m[1]),
		Container: m[2],
		Key:       m[3],
	}, nil
}

func (id Identifier) String() string {
	return id.Raw
}
