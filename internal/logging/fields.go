package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ResolveFields 提供标识与命中状态字段，供解析流程与 HTTP 层日志复用。
func ResolveFields(identifier string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"action":     "resolve",
		"identifier": identifier,
		"cache_hit":  cacheHit,
	}
}
