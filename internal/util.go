package internal

import (
	"fmt"
	"strings"
	"time"
)

func TruncateDuration(d time.Duration) time.Duration {
	magnitude := time.Duration(1)
	for {
		if magnitude > d {
			return d.Truncate(magnitude / 1000)
		}
		magnitude = magnitude * 10
	}
}

// Expand iterates over all keys of vars and replaces ${key} with the %v val
// of the corresponding value.
func Expand(s string, vars map[string]interface{}) string {
	for k, v := range vars {
		key := fmt.Sprintf("${%s}", k)
		val := fmt.Sprintf("%v", v)
		s = strings.ReplaceAll(s, key, val)
	}
	return s
}

// ErrStr returns "" if err is nil or err.Error() otherwise.
func ErrStr(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
