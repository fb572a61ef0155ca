package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/nonyonah/hedwig/internal/config"
)

// AdminAuthMiddleware gates operator endpoints behind a password and a TOTP
// code. Both travel as headers so the check works for GET requests too.
type AdminAuthMiddleware struct {
	passwordHash string
	totpSecret   string
}

// NewAdminAuthMiddleware creates an AdminAuthMiddleware.
func NewAdminAuthMiddleware(cfg config.AdminConfig) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		passwordHash: cfg.PasswordHash,
		totpSecret:   cfg.TOTPSecret,
	}
}

// RequireAdmin validates X-Admin-Password against the bcrypt hash and
// X-Admin-OTP against the TOTP secret. Endpoints stay closed when the
// credentials were never configured.
func (a *AdminAuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.passwordHash == "" || a.totpSecret == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "admin access is not configured",
				"code":  "ADMIN_DISABLED",
			})
			c.Abort()
			return
		}

		password := c.GetHeader("X-Admin-Password")
		if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
			logrus.WithField("path", c.Request.URL.Path).Warn("admin password rejected")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid admin credentials",
				"code":  "INVALID_ADMIN_CREDENTIALS",
			})
			c.Abort()
			return
		}

		if !totp.Validate(c.GetHeader("X-Admin-OTP"), a.totpSecret) {
			logrus.WithField("path", c.Request.URL.Path).Warn("admin otp rejected")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid one-time code",
				"code":  "INVALID_ADMIN_OTP",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
