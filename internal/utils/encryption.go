package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// EncryptBytes 加密二进制数据（使用 AES-256-GCM）,用于导出包
func EncryptBytes(plaintext []byte, key string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// 生成随机 nonce
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptBytes 解密二进制数据（使用 AES-256-GCM）
func DecryptBytes(ciphertext []byte, key string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, payload := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// Encrypt 加密字符串,返回 base64 编码的密文
func Encrypt(plaintext string, key string) (string, error) {
	ciphertext, err := EncryptBytes([]byte(plaintext), key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt 解密 base64 编码的密文
func Decrypt(ciphertext string, key string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	plaintext, err := DecryptBytes(decoded, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// newGCM 由口令派生 32 字节密钥并构造 GCM
func newGCM(key string) (cipher.AEAD, error) {
	// 验证密钥长度（至少 32 字节）
	if len(key) < 32 {
		return nil, errors.New("key must be at least 32 bytes long")
	}

	// 将密钥转换为 32 字节（使用 SHA-256 哈希）
	keyHash := sha256.Sum256([]byte(key))

	block, err := aes.NewCipher(keyHash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
