package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"mailboxgw/internal/config"
	"mailboxgw/internal/constants"
	"mailboxgw/internal/metrics"
)

// Authenticator 校验网关的静态凭据；按用户名密码精确匹配，与会话无关
type Authenticator struct {
	username     string
	password     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	log          zerolog.Logger
}

// NewAuthenticator 根据配置创建
func NewAuthenticator(cfg *config.Config, log zerolog.Logger) *Authenticator {
	a := &Authenticator{
		username: cfg.Auth.Username,
		password: cfg.Auth.Password,
		ttl:      cfg.TokenTTL(),
		log:      log,
	}
	if cfg.Auth.PasswordHash != "" {
		a.passwordHash = []byte(cfg.Auth.PasswordHash)
	}
	if cfg.JWT.Secret != "" {
		a.secret = []byte(cfg.JWT.Secret)
	}
	return a
}

// TokensEnabled 是否配置了 JWT 密钥
func (a *Authenticator) TokensEnabled() bool {
	return len(a.secret) > 0
}

// Require 认证中间件，支持 Basic 和 Bearer 两种方式。
// 失败时直接返回 401，不会进入处理器，也不会触发任何存储操作。
func (a *Authenticator) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := a.authenticate(c.Request)
		if err != nil {
			metrics.AuthFailures.Inc()
			a.log.Warn().
				Err(err).
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP()).
				Msg("认证失败")
			c.Header("WWW-Authenticate", `Basic realm="mailbox-gateway"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": constants.ErrAuthRequired})
			return
		}

		// 将认证主体存储在上下文中
		c.Set(constants.ContextKeyPrincipal, principal)
		c.Next()
	}
}

func (a *Authenticator) authenticate(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("未提供认证信息")
	}

	scheme, _, _ := strings.Cut(authHeader, " ")
	switch strings.ToLower(scheme) {
	case "basic":
		username, password, ok := r.BasicAuth()
		if !ok {
			return "", errors.New("无效的Basic认证格式")
		}
		if !a.CheckCredentials(username, password) {
			return "", errors.New("用户名或密码错误")
		}
		return username, nil
	case "bearer":
		if !a.TokensEnabled() {
			return "", errors.New("未启用token认证")
		}
		_, token, _ := strings.Cut(authHeader, " ")
		return a.ValidateToken(strings.TrimSpace(token))
	default:
		return "", fmt.Errorf("不支持的认证方式: %s", scheme)
	}
}

// CheckCredentials 常量时间比较用户名；密码优先按 bcrypt 哈希校验
func (a *Authenticator) CheckCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1

	var passOK bool
	if a.passwordHash != nil {
		passOK = bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	}
	return userOK && passOK
}

// GenerateToken 为网关用户签发 JWT
func (a *Authenticator) GenerateToken(subject string) (string, time.Time, error) {
	if !a.TokensEnabled() {
		return "", time.Time{}, errors.New("未配置JWT密钥")
	}

	now := time.Now()
	expire := now.Add(a.ttl)

	// 创建声明
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    constants.ServiceName,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expire),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expire, nil
}

// ValidateToken 验证JWT token，返回主体
func (a *Authenticator) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("意外的签名方法: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(constants.ServiceName),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("无效的token")
	}

	// token 只发给网关用户
	if subtle.ConstantTimeCompare([]byte(claims.Subject), []byte(a.username)) != 1 {
		return "", errors.New("无效的token主体")
	}
	return claims.Subject, nil
}
