package middleware

import "github.com/gin-gonic/gin"

// CORS applies a permissive-or-configured origin policy to every
// response. The teacher's cmd/api/main.go references middleware.CORS
// but no such file shipped with the retrieved pack; this is written
// fresh in the same small-gin-middleware idiom as ginzap.go and
// error.go, reading the same APIConfig fields the handlers read from
// config.Get().API.
func CORS(enabled bool, origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
