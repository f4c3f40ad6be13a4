package main

import (
	"crypto/rsa"
	"crypto/subtle"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/api/handlers"
	"github.com/BaSui01/wikichat/config"
	"github.com/BaSui01/wikichat/types"
)

// requireAuth 跳过 skipPaths，其余请求交给 check；check 返回非空消息即 401
func requireAuth(skipPaths []string, check func(r *http.Request) (*http.Request, string)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(skipPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			authed, reason := check(r)
			if reason != "" {
				handlers.WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, reason, nil)
				return
			}
			next.ServeHTTP(w, authed)
		})
	}
}

// APIKeyAuth 校验 X-API-Key；浏览器 WebSocket 无法设置请求头，也接受 api_key 查询参数
func APIKeyAuth(validKeys []string, skipPaths []string, logger *zap.Logger) Middleware {
	keys := make([][]byte, len(validKeys))
	for i, k := range validKeys {
		keys[i] = []byte(k)
	}
	return requireAuth(skipPaths, func(r *http.Request) (*http.Request, string) {
		presented := r.Header.Get("X-API-Key")
		if presented == "" {
			presented = r.URL.Query().Get("api_key")
		}
		for _, k := range keys {
			if subtle.ConstantTimeCompare([]byte(presented), k) == 1 {
				return r, ""
			}
		}
		logger.Debug("api key rejected", zap.String("path", r.URL.Path))
		return nil, "invalid or missing API key"
	})
}

// jwtVerifier 按 alg 选择 HS256 密钥或 RS256 公钥
type jwtVerifier struct {
	secret []byte
	pubKey *rsa.PublicKey
	opts   []jwt.ParserOption
}

func newJWTVerifier(cfg config.JWTConfig) (*jwtVerifier, error) {
	v := &jwtVerifier{
		secret: []byte(cfg.Secret),
		opts:   []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "RS256"})},
	}
	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.PublicKey == "" {
		return v, nil
	}

	block, _ := pem.Decode([]byte(cfg.PublicKey))
	if block == nil {
		return v, errors.New("public key is not PEM encoded")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return v, fmt.Errorf("parse public key: %w", err)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return v, fmt.Errorf("public key is %T, want RSA", pub)
	}
	v.pubKey = rsaKey
	return v, nil
}

func (v *jwtVerifier) key(token *jwt.Token) (any, error) {
	switch alg := token.Method.Alg(); {
	case alg == "HS256" && len(v.secret) > 0:
		return v.secret, nil
	case alg == "RS256" && v.pubKey != nil:
		return v.pubKey, nil
	default:
		return nil, fmt.Errorf("no key configured for %s", alg)
	}
}

// verify 返回 user_id 声明，缺省时取 sub
func (v *jwtVerifier) verify(raw string) (string, error) {
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, v.key, v.opts...); err != nil {
		return "", err
	}
	if uid, _ := claims["user_id"].(string); uid != "" {
		return uid, nil
	}
	sub, _ := claims.GetSubject()
	return sub, nil
}

// JWTAuth 校验 Authorization: Bearer，用户标识写入 context。
// 公钥无法解析时只记录警告，RS256 令牌一律拒绝。
func JWTAuth(cfg config.JWTConfig, skipPaths []string, logger *zap.Logger) Middleware {
	verifier, err := newJWTVerifier(cfg)
	if err != nil {
		logger.Warn("RS256 verification disabled", zap.Error(err))
	}
	return requireAuth(skipPaths, func(r *http.Request) (*http.Request, string) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			return nil, "missing or malformed Authorization header"
		}
		userID, err := verifier.verify(raw)
		if err != nil {
			logger.Debug("JWT rejected", zap.Error(err))
			return nil, "invalid or expired token"
		}
		if userID == "" {
			return r, ""
		}
		return r.WithContext(types.WithUserID(r.Context(), userID)), ""
	})
}
