package middleware

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxLoggedBody = 4 << 10

// RequestLog пишет в лог каждый запрос: метод, url, ip и тело.
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBody))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
		}

		c.Next()

		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"url":    c.Request.URL.String(),
			"ip":     c.ClientIP(),
			"body":   string(body),
			"status": c.Writer.Status(),
		}).Info("request")
	}
}
