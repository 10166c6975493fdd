package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxIDLen bounds session ids accepted from the URL; generated ids are UUIDs.
const maxIDLen = 128

// normalizeBasePath returns "" or a path with one leading and no trailing slash.
func normalizeBasePath(bp string) string {
	bp = strings.Trim(strings.TrimSpace(bp), "/")
	if bp == "" {
		return ""
	}
	return "/" + bp
}

// validSessionID accepts [A-Za-z0-9._-] up to maxIDLen, without "..".
func validSessionID(s string) bool {
	if s == "" || len(s) > maxIDLen || strings.Contains(s, "..") {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '.', r == '_', r == '-':
			return false
		}
		return true
	}) < 0
}

func writeJSON(c *gin.Context, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		b, _ = json.Marshal(errorResp{Error: "encode response: " + err.Error()})
	}
	c.Data(code, "application/json", append(b, '\n'))
}
