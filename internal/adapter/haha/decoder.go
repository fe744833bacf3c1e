package haha

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"unicode/utf8"

	"bidflow/internal/adapter"
	"bidflow/internal/apperrors"
)

// decodeEnvelope parses the API response and returns the raw order records.
// The body is either a bare JSON list, or an envelope object whose data
// field holds the list directly or as a base64 AES-CBC ciphertext.
func decodeEnvelope(body []byte, token, keySalt, ivSalt string) ([]map[string]interface{}, error) {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.NewDecode("response is not valid JSON", err)
	}

	switch v := parsed.(type) {
	case []interface{}:
		return toRecords(v)
	case map[string]interface{}:
		if status, ok := envelopeStatus(v); ok && status != 200 {
			return nil, apperrors.NewDecode("api returned non-success status", nil)
		}
		data, ok := v["data"]
		if !ok || data == nil {
			return nil, nil
		}
		switch d := data.(type) {
		case []interface{}:
			return toRecords(d)
		case string:
			plaintext, err := decrypt(d, token, keySalt, ivSalt)
			if err != nil {
				return nil, err
			}
			return parseDecrypted(plaintext)
		default:
			return nil, apperrors.NewDecode("unexpected data payload type", nil)
		}
	default:
		return nil, apperrors.NewDecode("unexpected response shape", nil)
	}
}

func envelopeStatus(envelope map[string]interface{}) (int, bool) {
	for _, key := range []string{"status", "code"} {
		if v, ok := envelope[key]; ok {
			switch n := v.(type) {
			case float64:
				return int(n), true
			case string:
				if n == "200" {
					return 200, true
				}
				return 0, true
			}
		}
	}
	return 0, false
}

// decrypt derives the AES key and IV from the platform token and decrypts
// the base64 payload. key = hex(MD5(token+keySalt)) as 32 ASCII bytes
// (AES-256); iv = first 16 hex chars of hex(MD5(token+ivSalt)).
func decrypt(cipherB64, token, keySalt, ivSalt string) ([]byte, error) {
	key := []byte(hexMD5(token + keySalt))
	iv := []byte(hexMD5(token + ivSalt)[:16])

	ciphertext, err := base64.StdEncoding.DecodeString(cipherB64)
	if err != nil {
		return nil, apperrors.NewDecode("payload is not valid base64", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, apperrors.NewDecode("ciphertext length is not a multiple of the block size", nil)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.NewDecode("failed to initialize cipher", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = pkcs7Unpad(plaintext)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(plaintext) {
		return nil, apperrors.NewDecode("decrypted payload is not valid UTF-8", nil)
	}
	return plaintext, nil
}

func hexMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, apperrors.NewDecode("empty plaintext", nil)
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(data) {
		return nil, apperrors.NewDecode("invalid padding", nil)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, apperrors.NewDecode("invalid padding", nil)
		}
	}
	return data[:len(data)-padding], nil
}

// parseDecrypted handles the decrypted JSON: a list, or an object carrying
// the list under data or list.
func parseDecrypted(plaintext []byte) ([]map[string]interface{}, error) {
	var parsed interface{}
	if err := json.Unmarshal(plaintext, &parsed); err != nil {
		return nil, apperrors.NewDecode("decrypted payload is not valid JSON", err)
	}

	switch v := parsed.(type) {
	case []interface{}:
		return toRecords(v)
	case map[string]interface{}:
		for _, key := range []string{"data", "list"} {
			if inner, ok := v[key].([]interface{}); ok {
				return toRecords(inner)
			}
		}
		return nil, apperrors.NewDecode("decrypted payload carries no record list", nil)
	default:
		return nil, apperrors.NewDecode("unexpected decrypted payload shape", nil)
	}
}

func toRecords(items []interface{}) ([]map[string]interface{}, error) {
	records := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if record, ok := item.(map[string]interface{}); ok {
			records = append(records, record)
		}
	}
	return records, nil
}

// prefilter removes records flagged with the origin marker the platform
// uses for orders that must not be bid on. Business exclusion, not a
// data-quality filter.
func prefilter(records []map[string]interface{}) []map[string]interface{} {
	kept := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		if adapter.StringField(record, "source") == "5" {
			continue
		}
		kept = append(kept, record)
	}
	return kept
}
