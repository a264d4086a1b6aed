package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// KeycloakClaims Keycloak JWT 声明
type KeycloakClaims struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// KeycloakTokenValidator Keycloak Token 验证器
type KeycloakTokenValidator struct {
	issuer     string
	jwksURL    string
	jwksCache  *sync.Map
	httpClient *http.Client
}

// NewKeycloakTokenValidator 创建 Keycloak Token 验证器
func NewKeycloakTokenValidator(issuer, jwksURL string) *KeycloakTokenValidator {
	if jwksURL == "" {
		jwksURL = fmt.Sprintf("%s/protocol/openid-connect/certs", issuer)
	}
	return &KeycloakTokenValidator{
		issuer:     issuer,
		jwksURL:    jwksURL,
		jwksCache:  &sync.Map{},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Issuer 返回 Issuer URL
func (v *KeycloakTokenValidator) Issuer() string {
	return v.issuer
}

// ValidateToken 验证 Keycloak JWT Token
// 公钥按 token 头部的 kid 从 JWKS 取,签名算法限定 RSA
func (v *KeycloakTokenValidator) ValidateToken(tokenString string) (*KeycloakClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&KeycloakClaims{},
		func(token *jwt.Token) (interface{}, error) {
			kid, ok := token.Header["kid"].(string)
			if !ok {
				return nil, errors.New("missing kid in token header")
			}
			return v.GetPublicKey(kid)
		},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	claims, ok := token.Claims.(*KeycloakClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GetPublicKey 获取公钥 (从 JWKS 或缓存)
func (v *KeycloakTokenValidator) GetPublicKey(kid string) (*rsa.PublicKey, error) {
	if cached, ok := v.jwksCache.Load(kid); ok {
		return cached.(*rsa.PublicKey), nil
	}

	resp, err := v.httpClient.Get(v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	for _, key := range jwks.Keys {
		if key.Kid != kid {
			continue
		}
		publicKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		v.jwksCache.Store(kid, publicKey)
		return publicKey, nil
	}

	return nil, fmt.Errorf("key not found in JWKS: %s", kid)
}

// parseRSAPublicKey 解析 RSA 公钥
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// KeycloakAuthMiddleware Keycloak JWT 认证中间件
func KeycloakAuthMiddleware(validator *KeycloakTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "missing authorization header",
			})
			c.Abort()
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := validator.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "invalid token",
				"detail":  err.Error(),
			})
			c.Abort()
			return
		}

		// 将用户信息存储到上下文
		c.Set("user_id", claims.Sub)
		c.Set("username", claims.PreferredUsername)
		c.Set("email", claims.Email)
		c.Set("name", claims.Name)
		c.Set("roles", claims.RealmAccess.Roles)

		c.Next()
	}
}
