package logging

import "github.com/sirupsen/logrus"

// BaseFields builds the action + config-path fields shared by startup log lines.
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields builds the fields every proxied-request log line carries.
func RequestFields(requestID, method, targetURL string, isRange, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"url":        targetURL,
		"is_range":   isRange,
		"cache_hit":  cacheHit,
	}
}
